package media

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/mirror"
)

// DetectKind sniffs a file and returns its MIME type and the media kind it
// should be sent as. Unknown content is a document.
func DetectKind(path string) (string, mirror.MediaKind, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", mirror.MediaNone, err
	}
	return mt.String(), KindForMIME(mt.String()), nil
}

func KindForMIME(mime string) mirror.MediaKind {
	mime, _, _ = strings.Cut(mime, ";")
	switch {
	case mime == "image/gif":
		return mirror.MediaGIF
	case mime == "image/webp", mime == "application/x-tgsticker", mime == "video/webm":
		return mirror.MediaSticker
	case strings.HasPrefix(mime, "image/"):
		return mirror.MediaPhoto
	case strings.HasPrefix(mime, "video/"):
		return mirror.MediaVideo
	case mime == "audio/ogg", mime == "audio/opus":
		return mirror.MediaVoice
	case strings.HasPrefix(mime, "audio/"):
		return mirror.MediaAudio
	default:
		return mirror.MediaDocument
	}
}

// Extension returns the usual file extension for a MIME type, including the dot.
func Extension(mime string) string {
	if mt := mimetype.Lookup(mime); mt != nil && mt.Extension() != "" {
		return mt.Extension()
	}
	return ".bin"
}

// TempPath returns a unique path in dir for a file with the given extension.
func TempPath(dir, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(dir, uuid.NewString()+ext)
}
