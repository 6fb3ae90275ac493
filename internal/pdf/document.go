// Package pdf reads page text from PDF bytes and rasterizes single pages for
// OCR.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	lpdf "github.com/ledongthuc/pdf"
)

var (
	ErrNotPDF   = errors.New("not a PDF document")
	ErrNoPages  = errors.New("document has no pages")
	ErrNoRender = errors.New("page rendering is not configured")
)

// Document is an opened PDF. Close releases the temporary file created for
// rendering.
type Document struct {
	reader   *lpdf.Reader
	data     []byte
	renderer *Renderer

	mu      sync.Mutex
	tmpPath string
}

// Opener opens PDF bytes into Documents that render through renderer.
type Opener struct {
	renderer *Renderer
}

// NewOpener creates an Opener; renderer may be nil when only text is needed.
func NewOpener(renderer *Renderer) *Opener {
	return &Opener{renderer: renderer}
}

// Open parses data as a PDF.
func (o *Opener) Open(data []byte) (*Document, error) {
	return Open(data, o.renderer)
}

// Open parses data as a PDF. The returned error wraps ErrNotPDF or ErrNoPages
// for unusable input.
func Open(data []byte, renderer *Renderer) (doc *Document, err error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return nil, ErrNotPDF
	}

	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: %v", ErrNotPDF, r)
		}
	}()

	reader, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	if reader.NumPage() < 1 {
		return nil, ErrNoPages
	}

	return &Document{
		reader:   reader,
		data:     data,
		renderer: renderer,
	}, nil
}

// NumPages returns the page count
func (d *Document) NumPages() int {
	return d.reader.NumPage()
}

// PageText returns the structural text of page n (1-based).
func (d *Document) PageText(n int) (text string, err error) {
	if n < 1 || n > d.reader.NumPage() {
		return "", fmt.Errorf("page %d out of range [1, %d]", n, d.reader.NumPage())
	}

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("page %d: text extraction panicked: %v", n, r)
		}
	}()

	page := d.reader.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// RenderPage rasterizes page n (1-based) to JPEG bytes.
func (d *Document) RenderPage(ctx context.Context, n int) ([]byte, error) {
	if d.renderer == nil {
		return nil, ErrNoRender
	}
	path, err := d.materialize()
	if err != nil {
		return nil, err
	}
	return d.renderer.RenderJPEG(ctx, path, n)
}

// Close removes the temporary copy of the document, if one was written.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tmpPath == "" {
		return nil
	}
	err := os.Remove(d.tmpPath)
	d.tmpPath = ""
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// materialize writes the document to a temp file once; pdftoppm reads paths.
func (d *Document) materialize() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tmpPath != "" {
		return d.tmpPath, nil
	}

	f, err := os.CreateTemp("", "askdoc-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp pdf: %w", err)
	}
	if _, err := f.Write(d.data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close temp pdf: %w", err)
	}

	d.tmpPath = f.Name()
	return d.tmpPath, nil
}
