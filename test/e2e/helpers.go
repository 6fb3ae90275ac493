//go:build e2e

package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/cloo-solutions/askdoc/internal/api/handlers"
	"github.com/cloo-solutions/askdoc/internal/domain"
	"github.com/cloo-solutions/askdoc/internal/pdf"
	"github.com/cloo-solutions/askdoc/internal/repository"
	"github.com/cloo-solutions/askdoc/internal/server"
	"github.com/cloo-solutions/askdoc/internal/service"
	"github.com/cloo-solutions/askdoc/internal/storage"
	"github.com/cloo-solutions/askdoc/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	testCollection = "askdoc-e2e"
	testDimensions = 1536
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	RustFSC    *testutil.RustFSContainer
	Pool       *pgxpool.Pool
	Server     *httptest.Server
	S3Client   *storage.S3Client
	Repo       *repository.DocumentChunkRepository
	Generator  *scriptedGenerator
	HTTPClient *http.Client
}

// SetupE2EEnv starts Postgres and RustFS and serves the full pipeline with
// deterministic embedding and generation stand-ins.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSSecretKey,
		Bucket:          "askdoc-e2e",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	repo := repository.NewDocumentChunkRepository(pool)
	embedder := hashEmbedder{}
	generator := &scriptedGenerator{}

	extractor := service.NewExtractionService(service.NewPDFOpener(pdf.NewOpener(nil)), nil, nil)
	indexer := service.NewIndexer(embedder, repo, testCollection, nil)
	ingest := service.NewIngestService(extractor, indexer, s3Client, service.DefaultChunkConfig(), nil)

	sessions := service.NewSessionStore()
	chat := service.NewChatService(
		service.NewRouterService(generator, nil),
		service.NewRewriterService(generator, nil),
		service.NewRetrieverService(embedder, repo, testCollection, nil),
		service.NewAnswerService(generator),
		service.DefaultTopK,
		nil,
	)

	srv := httptest.NewServer(server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(ingest, nil),
		SessionHandler:  handlers.NewSessionHandler(chat, sessions, nil),
	}))

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		Server:     srv,
		S3Client:   s3Client,
		Repo:       repo,
		Generator:  generator,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// APIResponse is the decoded success envelope
type APIResponse struct {
	Status int
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Stage  string          `json:"stage"`
}

func (e *E2ETestEnv) do(req *http.Request) *APIResponse {
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	out := &APIResponse{Status: resp.StatusCode}
	body, _ := io.ReadAll(resp.Body)
	if len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			e.T.Fatalf("failed to decode %q: %v", body, err)
		}
	}
	return out
}

// Upload posts a PDF to /documents
func (e *E2ETestEnv) Upload(filename string, data []byte) *APIResponse {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		e.T.Fatalf("failed to build multipart body: %v", err)
	}
	fw.Write(data)
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, e.Server.URL+"/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req)
}

// NewSession creates a session and returns its id
func (e *E2ETestEnv) NewSession() string {
	req, _ := http.NewRequest(http.MethodPost, e.Server.URL+"/sessions", nil)
	resp := e.do(req)
	var session struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &session); err != nil {
		e.T.Fatalf("failed to parse session: %v", err)
	}
	return session.ID
}

// Messages returns the session history
func (e *E2ETestEnv) Messages(sessionID string) []domain.ChatTurn {
	req, _ := http.NewRequest(http.MethodGet, e.Server.URL+"/sessions/"+sessionID+"/messages", nil)
	resp := e.do(req)
	var out struct {
		Messages []domain.ChatTurn `json:"messages"`
	}
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		e.T.Fatalf("failed to parse messages: %v", err)
	}
	return out.Messages
}

// Reset clears the session history
func (e *E2ETestEnv) Reset(sessionID string) int {
	req, _ := http.NewRequest(http.MethodDelete, e.Server.URL+"/sessions/"+sessionID+"/messages", nil)
	return e.do(req).Status
}

// SSEEvent is one server-sent event
type SSEEvent struct {
	Name string
	Data string
}

// Ask posts a question and collects the event stream
func (e *E2ETestEnv) Ask(sessionID string, body map[string]interface{}) (int, []SSEEvent) {
	payload, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, e.Server.URL+"/sessions/"+sessionID+"/messages", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("ask failed: %v", err)
	}
	defer resp.Body.Close()

	var events []SSEEvent
	var current SSEEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = strings.TrimPrefix(line, "data: ")
		case line == "" && current.Name != "":
			events = append(events, current)
			current = SSEEvent{}
		}
	}
	return resp.StatusCode, events
}

// hashEmbedder maps words into a fixed-size bag-of-words vector, so texts
// sharing words are close under cosine distance.
type hashEmbedder struct{}

func (hashEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, testDimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%testDimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

// scriptedGenerator answers each prompt kind deterministically
type scriptedGenerator struct {
	completions []string
}

func (g *scriptedGenerator) Complete(_ context.Context, req domain.GenerationRequest) (string, error) {
	system := req.Messages[0].Content
	user := req.Messages[len(req.Messages)-1].Content
	g.completions = append(g.completions, system)

	switch {
	case strings.Contains(system, "query classifier"):
		if strings.Contains(strings.ToLower(user), "thank") {
			return "CHAT", nil
		}
		return "SEARCH", nil
	case strings.Contains(system, "standalone search query"):
		question := user[strings.Index(user, "User Question: ")+len("User Question: "):]
		if i := strings.Index(question, "\n\n"); i >= 0 {
			question = question[:i]
		}
		return "Search Query: " + question, nil
	default:
		return "", nil
	}
}

func (g *scriptedGenerator) Stream(_ context.Context, req domain.GenerationRequest) (domain.TokenStream, error) {
	system := req.Messages[0].Content
	if strings.Contains(system, "provided Context only") {
		ctxText := system[strings.Index(system, "Context:\n")+len("Context:\n"):]
		first := strings.SplitN(ctxText, "\n", 2)[0]
		return &sliceStream{tokens: []string{"According to the documents: ", first}}, nil
	}
	return &sliceStream{tokens: []string{"You're ", "welcome!"}}, nil
}

type sliceStream struct {
	tokens []string
}

func (s *sliceStream) Recv() (string, error) {
	if len(s.tokens) == 0 {
		return "", io.EOF
	}
	tok := s.tokens[0]
	s.tokens = s.tokens[1:]
	return tok, nil
}

func (s *sliceStream) Close() error { return nil }
