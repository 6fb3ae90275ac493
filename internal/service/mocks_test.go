package service

import (
	"context"
	"errors"
	"io"

	"github.com/cloo-solutions/askdoc/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockEmbeddingClient mocks the embedding capability
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockVectorStore mocks the vector collection
type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) Upsert(ctx context.Context, docs []domain.IndexedDocument) error {
	args := m.Called(ctx, docs)
	return args.Error(0)
}

func (m *MockVectorStore) SimilaritySearch(ctx context.Context, collection string, vector []float32, k int) ([]domain.RetrievedDocument, error) {
	args := m.Called(ctx, collection, vector, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievedDocument), args.Error(1)
}

// MockGenerator mocks text generation
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Complete(ctx context.Context, req domain.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockGenerator) Stream(ctx context.Context, req domain.GenerationRequest) (domain.TokenStream, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.TokenStream), args.Error(1)
}

// MockOCRClient mocks the OCR fallback
type MockOCRClient struct {
	mock.Mock
}

func (m *MockOCRClient) ExtractText(ctx context.Context, image []byte) string {
	args := m.Called(ctx, image)
	return args.String(0)
}

// MockArchive mocks raw upload storage
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Put(ctx context.Context, key, contentType string, data []byte) error {
	args := m.Called(ctx, key, contentType, data)
	return args.Error(0)
}

// fakeStream replays tokens, then err (io.EOF when nil)
type fakeStream struct {
	tokens []string
	err    error
	closed bool
}

func newFakeStream(tokens ...string) *fakeStream {
	return &fakeStream{tokens: tokens}
}

func (s *fakeStream) Recv() (string, error) {
	if len(s.tokens) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	t := s.tokens[0]
	s.tokens = s.tokens[1:]
	return t, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

// fakePage is one page of a fakeDocument
type fakePage struct {
	text      string
	textErr   error
	image     []byte
	renderErr error
}

// fakeDocument is an in-memory PageDocument
type fakeDocument struct {
	pages    []fakePage
	rendered []int
	closed   bool
}

func (d *fakeDocument) NumPages() int { return len(d.pages) }

func (d *fakeDocument) PageText(n int) (string, error) {
	p := d.pages[n-1]
	return p.text, p.textErr
}

func (d *fakeDocument) RenderPage(ctx context.Context, n int) ([]byte, error) {
	d.rendered = append(d.rendered, n)
	p := d.pages[n-1]
	return p.image, p.renderErr
}

func (d *fakeDocument) Close() error {
	d.closed = true
	return nil
}

// fakeOpener returns doc for any input, or err
type fakeOpener struct {
	doc *fakeDocument
	err error
}

func (o *fakeOpener) Open(data []byte) (PageDocument, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.doc, nil
}

// sequenceUUID hands out predictable ids
type sequenceUUID struct {
	ids []string
	n   int
}

func (g *sequenceUUID) Generate() string {
	id := g.ids[g.n%len(g.ids)]
	g.n++
	return id
}

var errServiceDown = errors.New("503 service unavailable")

func vec(values ...float32) []float32 {
	return values
}
