package pdf

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records the pdftoppm invocation and writes image to the
// requested output prefix.
type fakeRunner struct {
	image   []byte
	err     error
	name    string
	args    []string
	pdfPath string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.name = name
	f.args = args
	if f.err != nil {
		return []byte("boom"), f.err
	}
	f.pdfPath = args[len(args)-2]
	prefix := args[len(args)-1]
	if f.image != nil {
		if err := os.WriteFile(prefix+".jpg", f.image, 0o600); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func TestNewRenderer_Defaults(t *testing.T) {
	r := NewRenderer(RendererConfig{})
	assert.Equal(t, DefaultBinary, r.binary)
	assert.Equal(t, DefaultJPEGQuality, r.quality)
	assert.Equal(t, 144, r.DPI())
}

func TestRenderer_RenderJPEG(t *testing.T) {
	runner := &fakeRunner{image: []byte{0xff, 0xd8, 0xff}}
	r := NewRenderer(RendererConfig{Binary: "/usr/bin/pdftoppm", Runner: runner})

	img, err := r.RenderJPEG(context.Background(), "/tmp/doc.pdf", 3)

	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, img)
	assert.Equal(t, "/usr/bin/pdftoppm", runner.name)
	assert.Equal(t, []string{
		"-f", "3", "-l", "3",
		"-r", "144",
		"-jpeg", "-jpegopt", "quality=75",
		"-singlefile",
		"/tmp/doc.pdf",
	}, runner.args[:len(runner.args)-1])
}

func TestRenderer_RenderJPEG_CommandFails(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1")}
	r := NewRenderer(RendererConfig{Runner: runner})

	_, err := r.RenderJPEG(context.Background(), "/tmp/doc.pdf", 1)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRenderer_RenderJPEG_NoOutput(t *testing.T) {
	runner := &fakeRunner{}
	r := NewRenderer(RendererConfig{Runner: runner})

	_, err := r.RenderJPEG(context.Background(), "/tmp/doc.pdf", 1)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
