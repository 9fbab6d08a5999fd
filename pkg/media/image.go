package media

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/png"

	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/mirror"
)

// ThumbnailSize is the longest side of generated thumbnails.
const ThumbnailSize = 320

// Processor re-encodes images before they are uploaded to the destination.
type Processor struct {
	TempDir      string
	MaxDimension int
	JPEGQuality  int
	log          zerolog.Logger
}

var _ mirror.MediaPreparer = (*Processor)(nil)

func NewProcessor(tempDir string, maxDimension, jpegQuality int, log zerolog.Logger) *Processor {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 90
	}
	return &Processor{
		TempDir:      tempDir,
		MaxDimension: maxDimension,
		JPEGQuality:  jpegQuality,
		log:          log.With().Str("component", "media").Logger(),
	}
}

// PrepareUpload converts photos that are not JPEG and scales down photos
// larger than MaxDimension. Anything else is returned unchanged.
func (p *Processor) PrepareUpload(_ context.Context, path string, kind mirror.MediaKind) (string, error) {
	if kind != mirror.MediaPhoto {
		return path, nil
	}
	mime, _, err := DetectKind(path)
	if err != nil {
		return "", fmt.Errorf("failed to detect media type: %w", err)
	}
	switch mime {
	case "image/jpeg", "image/png", "image/tiff", "image/bmp", "image/webp":
	default:
		return path, nil
	}
	img, err := decodeFile(path)
	if err != nil {
		return "", err
	}
	bounds := img.Bounds()
	scaled := fitWithin(bounds.Dx(), bounds.Dy(), p.MaxDimension)
	if mime == "image/jpeg" && scaled == bounds.Size() {
		return path, nil
	}

	out := TempPath(p.TempDir, ".jpg")
	if err = writeJPEG(out, resize(img, scaled), p.JPEGQuality); err != nil {
		return "", err
	}
	p.log.Debug().
		Str("source", path).
		Str("mime", mime).
		Int("width", scaled.X).
		Int("height", scaled.Y).
		Msg("Re-encoded photo for upload")
	return out, nil
}

// Thumbnail writes a small JPEG preview of an image file and returns its path.
func (p *Processor) Thumbnail(path string) (string, error) {
	img, err := decodeFile(path)
	if err != nil {
		return "", err
	}
	b := img.Bounds()
	out := TempPath(p.TempDir, ".jpg")
	if err = writeJPEG(out, resize(img, fitWithin(b.Dx(), b.Dy(), ThumbnailSize)), 75); err != nil {
		return "", err
	}
	return out, nil
}

func decodeFile(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// fitWithin scales w x h down so that neither side exceeds limit. A limit of 0 disables scaling.
func fitWithin(w, h, limit int) image.Point {
	if limit <= 0 || (w <= limit && h <= limit) {
		return image.Pt(w, h)
	}
	scale := min(float64(limit)/float64(w), float64(limit)/float64(h))
	return image.Pt(max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale)))
}

func resize(img image.Image, size image.Point) image.Image {
	dst := image.NewRGBA(image.Rectangle{Max: size})
	// JPEG has no alpha channel, flatten onto white.
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

func writeJPEG(path string, img image.Image, quality int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if err = jpeg.Encode(file, img, &jpeg.Options{Quality: quality}); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return file.Close()
}
