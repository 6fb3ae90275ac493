package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/askdoc/internal/domain"
	"github.com/cloo-solutions/askdoc/internal/pdf"
	"github.com/cloo-solutions/askdoc/internal/telemetry"
	"go.uber.org/zap"
)

// DigitalTextThreshold is the number of characters, after trimming
// surrounding whitespace, a page's structural text must exceed to skip OCR.
const DigitalTextThreshold = 50

// ProgressFunc receives (current, total) after each page. It may be nil.
type ProgressFunc func(current, total int)

// OCRClient turns a page image into text. Failures yield "".
type OCRClient interface {
	ExtractText(ctx context.Context, image []byte) string
}

// PageDocument is an opened, paginated source document
type PageDocument interface {
	NumPages() int
	PageText(n int) (string, error)
	RenderPage(ctx context.Context, n int) ([]byte, error)
	Close() error
}

// DocumentOpener parses raw upload bytes
type DocumentOpener interface {
	Open(data []byte) (PageDocument, error)
}

type pdfOpener struct {
	opener *pdf.Opener
}

// NewPDFOpener adapts a pdf.Opener to DocumentOpener.
func NewPDFOpener(opener *pdf.Opener) DocumentOpener {
	return &pdfOpener{opener: opener}
}

func (o *pdfOpener) Open(data []byte) (PageDocument, error) {
	doc, err := o.opener.Open(data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ExtractionService turns a document into one PageRecord per page, using
// structural text when it is rich enough and OCR otherwise.
type ExtractionService struct {
	opener DocumentOpener
	ocr    OCRClient
	logger *zap.Logger
}

// NewExtractionService creates a new ExtractionService. ocr may be nil, in
// which case pages without digital text get the placeholder.
func NewExtractionService(opener DocumentOpener, ocr OCRClient, logger *zap.Logger) *ExtractionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtractionService{
		opener: opener,
		ocr:    ocr,
		logger: logger,
	}
}

// ExtractPages returns the pages of doc in order. Only an unreadable
// document is an error; per-page failures degrade to the placeholder.
func (s *ExtractionService) ExtractPages(ctx context.Context, doc domain.SourceDocument, progress ProgressFunc) ([]domain.PageRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "extraction.ExtractPages", telemetry.SpanAttributes{
		Source:    doc.Name,
		Operation: "extract",
	})
	defer span.End()

	opened, err := s.opener.Open(doc.Data)
	if err != nil {
		s.logger.Warn("failed to open document", zap.String("source", doc.Name), zap.Error(err))
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeMalformedInput, domain.ErrMalformedDocument.Message, err)
	}
	defer func() {
		if err := opened.Close(); err != nil {
			s.logger.Warn("failed to close document", zap.String("source", doc.Name), zap.Error(err))
		}
	}()

	total := opened.NumPages()
	if total < 1 {
		return nil, domain.ErrMalformedDocument
	}

	pages := make([]domain.PageRecord, 0, total)
	ocrPages := 0
	for n := 1; n <= total; n++ {
		text, usedOCR := s.extractPage(ctx, opened, doc.Name, n)
		if usedOCR {
			ocrPages++
		}
		pages = append(pages, domain.NewPageRecord(n, doc.Name, text, usedOCR))
		if progress != nil {
			progress(n, total)
		}
	}

	span.SetData("pages", total)
	span.SetData("ocr_pages", ocrPages)
	s.logger.Info("extracted document",
		zap.String("source", doc.Name),
		zap.Int("pages", total),
		zap.Int("ocr_pages", ocrPages),
	)

	return pages, nil
}

func (s *ExtractionService) extractPage(ctx context.Context, doc PageDocument, source string, n int) (string, bool) {
	text, err := doc.PageText(n)
	if err != nil {
		s.logger.Debug("structural extraction failed", zap.String("source", source), zap.Int("page", n), zap.Error(err))
		text = ""
	}
	if IsDigitalText(text) {
		return text, false
	}

	if s.ocr == nil {
		return text, false
	}

	image, err := doc.RenderPage(ctx, n)
	if err != nil {
		s.logger.Warn("page render failed", zap.String("source", source), zap.Int("page", n), zap.Error(err))
		return text, false
	}

	s.logger.Debug("running OCR", zap.String("source", source), zap.Int("page", n), zap.Int("image_bytes", len(image)))
	return s.ocr.ExtractText(ctx, image), true
}

// IsDigitalText reports whether structural text is rich enough to skip OCR.
func IsDigitalText(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) > DigitalTextThreshold
}
