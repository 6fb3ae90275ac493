package pdf

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

const (
	// BaseDPI is the PDF user-space resolution (one point per pixel)
	BaseDPI = 72

	DefaultScale       = 2.0
	DefaultJPEGQuality = 75
	DefaultBinary      = "pdftoppm"
)

// CommandRunner executes an external command and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// RendererConfig holds configuration for Renderer
type RendererConfig struct {
	Binary  string
	Scale   float64
	Quality int
	Runner  CommandRunner
}

// Renderer rasterizes single PDF pages with Poppler's pdftoppm.
type Renderer struct {
	binary  string
	scale   float64
	quality int
	runner  CommandRunner
}

// NewRenderer creates a Renderer, filling defaults for zero fields.
func NewRenderer(cfg RendererConfig) *Renderer {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.Scale <= 0 {
		cfg.Scale = DefaultScale
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = DefaultJPEGQuality
	}
	if cfg.Runner == nil {
		cfg.Runner = ExecRunner{}
	}
	return &Renderer{
		binary:  cfg.Binary,
		scale:   cfg.Scale,
		quality: cfg.Quality,
		runner:  cfg.Runner,
	}
}

// DPI returns the render resolution
func (r *Renderer) DPI() int {
	return int(BaseDPI * r.scale)
}

// Available reports whether the renderer binary can be found on PATH.
func (r *Renderer) Available() bool {
	_, err := exec.LookPath(r.binary)
	return err == nil
}

// RenderJPEG renders page (1-based) of the PDF at pdfPath to JPEG bytes.
func (r *Renderer) RenderJPEG(ctx context.Context, pdfPath string, page int) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "askdoc-render-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create render dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	args := r.args(pdfPath, page, prefix)

	if out, err := r.runner.Run(ctx, r.binary, args...); err != nil {
		return nil, fmt.Errorf("%s failed on page %d: %w (%s)", r.binary, page, err, string(out))
	}

	img, err := os.ReadFile(prefix + ".jpg")
	if err != nil {
		return nil, fmt.Errorf("rendered image for page %d not found: %w", page, err)
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("rendered image for page %d is empty", page)
	}
	return img, nil
}

func (r *Renderer) args(pdfPath string, page int, prefix string) []string {
	p := strconv.Itoa(page)
	return []string{
		"-f", p,
		"-l", p,
		"-r", strconv.Itoa(r.DPI()),
		"-jpeg",
		"-jpegopt", "quality=" + strconv.Itoa(r.quality),
		"-singlefile",
		pdfPath,
		prefix,
	}
}
