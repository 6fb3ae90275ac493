package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/cloo-solutions/askdoc/internal/api"
	"github.com/cloo-solutions/askdoc/internal/domain"
	"github.com/cloo-solutions/askdoc/internal/service"
	"go.uber.org/zap"
)

const multipartMemory = 32 << 20

var pdfMagic = []byte("%PDF-")

type DocumentIngester interface {
	Ingest(ctx context.Context, doc domain.SourceDocument, progress service.ProgressFunc) (*service.IngestReport, error)
}

type DocumentHandler struct {
	svc    DocumentIngester
	logger *zap.Logger
}

func NewDocumentHandler(svc DocumentIngester, logger *zap.Logger) *DocumentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentHandler{svc: svc, logger: logger}
}

type IngestResponse struct {
	Source     string `json:"source"`
	ArchiveKey string `json:"archive_key,omitempty"`
	Pages      int    `json:"pages"`
	OCRPages   int    `json:"ocr_pages"`
	Chunks     int    `json:"chunks"`
	Indexed    int    `json:"indexed"`
	DurationMS int64  `json:"duration_ms"`
}

func reportToResponse(r *service.IngestReport) *IngestResponse {
	return &IngestResponse{
		Source:     r.Source,
		ArchiveKey: r.ArchiveKey,
		Pages:      r.Pages,
		OCRPages:   r.OCRPages,
		Chunks:     r.Chunks,
		Indexed:    r.Indexed,
		DurationMS: r.Duration.Milliseconds(),
	}
}

// Upload ingests the PDF sent in the multipart field "file".
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "document too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read file")
		return
	}

	if !isPDF(header.Filename, data) {
		api.HandleError(w, domain.ErrUnsupportedDocument)
		return
	}

	name := filepath.Base(header.Filename)
	report, err := h.svc.Ingest(r.Context(), domain.SourceDocument{Name: name, Data: data}, func(page, total int) {
		h.logger.Debug("processing page", zap.String("source", name), zap.Int("page", page), zap.Int("total", total))
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, reportToResponse(report))
}

func isPDF(filename string, data []byte) bool {
	if !bytes.HasPrefix(data, pdfMagic) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == "" || ext == ".pdf"
}
