package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	"github.com/cloo-solutions/askdoc/internal/domain"
	"github.com/cloo-solutions/askdoc/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
)

type MockDocumentIngester struct {
	mock.Mock
}

func (m *MockDocumentIngester) Ingest(ctx context.Context, doc domain.SourceDocument, progress service.ProgressFunc) (*service.IngestReport, error) {
	args := m.Called(ctx, doc, progress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestReport), args.Error(1)
}

type MockChatService struct {
	mock.Mock
	tokens []string
}

func (m *MockChatService) Ask(ctx context.Context, session *domain.Session, question string, opts service.AskOptions, onToken func(string)) (*service.AskResult, error) {
	for _, tok := range m.tokens {
		onToken(tok)
	}
	args := m.Called(ctx, session, question, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AskResult), args.Error(1)
}

type fixedIDs struct {
	ids []string
	n   int
}

func (f *fixedIDs) Generate() string {
	id := f.ids[f.n%len(f.ids)]
	f.n++
	return id
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func multipartUpload(field, filename string, data []byte) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile(field, filename)
	_, _ = fw.Write(data)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
