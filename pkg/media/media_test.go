package media

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/mirror"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(file, img))
	require.NoError(t, file.Close())
}

func TestKindForMIME(t *testing.T) {
	assert.Equal(t, mirror.MediaPhoto, KindForMIME("image/jpeg"))
	assert.Equal(t, mirror.MediaGIF, KindForMIME("image/gif"))
	assert.Equal(t, mirror.MediaVideo, KindForMIME("video/mp4"))
	assert.Equal(t, mirror.MediaVoice, KindForMIME("audio/ogg; codecs=opus"))
	assert.Equal(t, mirror.MediaAudio, KindForMIME("audio/mpeg"))
	assert.Equal(t, mirror.MediaDocument, KindForMIME("application/pdf"))
}

func TestDetectKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.bin")
	writePNG(t, path, 4, 4)
	mime, kind, err := DetectKind(path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, mirror.MediaPhoto, kind)
}

func TestPrepareUploadConvertsAndScales(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "big.png")
	writePNG(t, src, 200, 100)

	p := NewProcessor(dir, 50, 80, zerolog.Nop())
	out, err := p.PrepareUpload(context.Background(), src, mirror.MediaPhoto)
	require.NoError(t, err)
	assert.NotEqual(t, src, out)

	mime, _, err := DetectKind(out)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
	img, err := decodeFile(out)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(50, 25), img.Bounds().Size())
}

func TestPrepareUploadLeavesOtherKinds(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "doc.png")
	writePNG(t, src, 10, 10)
	p := NewProcessor(dir, 5, 80, zerolog.Nop())
	out, err := p.PrepareUpload(context.Background(), src, mirror.MediaDocument)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestThumbnail(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	writePNG(t, src, 640, 480)
	p := NewProcessor(dir, 0, 0, zerolog.Nop())
	out, err := p.Thumbnail(src)
	require.NoError(t, err)
	img, err := decodeFile(out)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(ThumbnailSize, 240), img.Bounds().Size())
}

func TestFitWithin(t *testing.T) {
	assert.Equal(t, image.Pt(10, 20), fitWithin(10, 20, 0))
	assert.Equal(t, image.Pt(10, 20), fitWithin(10, 20, 20))
	assert.Equal(t, image.Pt(1, 100), fitWithin(5, 1000, 100))
}

func TestJanitorSweep(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.jpg")
	fresh := filepath.Join(dir, "fresh.jpg")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0600))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0600))
	require.NoError(t, os.Chtimes(old, time.Now().Add(-48*time.Hour), time.Now().Add(-48*time.Hour)))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0700))

	j := NewJanitor(dir, 24*time.Hour, "@hourly", zerolog.Nop())
	removed, err := j.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.DirExists(t, filepath.Join(dir, "subdir"))

	removed, err = NewJanitor(filepath.Join(dir, "missing"), time.Hour, "", zerolog.Nop()).Sweep()
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestJanitorRejectsBadSchedule(t *testing.T) {
	j := NewJanitor(t.TempDir(), time.Hour, "not a cron", zerolog.Nop())
	assert.Error(t, j.Run(context.Background()))
}
