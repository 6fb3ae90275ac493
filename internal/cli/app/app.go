// Package app wires configuration into the askdocd commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/askdoc/internal/api/handlers"
	"github.com/cloo-solutions/askdoc/internal/api/middleware"
	"github.com/cloo-solutions/askdoc/internal/config"
	"github.com/cloo-solutions/askdoc/internal/database"
	"github.com/cloo-solutions/askdoc/internal/logging"
	"github.com/cloo-solutions/askdoc/internal/ocr"
	"github.com/cloo-solutions/askdoc/internal/openai"
	"github.com/cloo-solutions/askdoc/internal/pdf"
	"github.com/cloo-solutions/askdoc/internal/repository"
	"github.com/cloo-solutions/askdoc/internal/server"
	"github.com/cloo-solutions/askdoc/internal/service"
	"github.com/cloo-solutions/askdoc/internal/storage"
	"github.com/cloo-solutions/askdoc/internal/telemetry"
	"github.com/cloo-solutions/askdoc/internal/vectorstore/weaviate"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var errNoOpenAI = errors.New("OPENAI_API_KEY is required")

// App holds the services built from one configuration
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Ingest   *service.IngestService
	Chat     *service.ChatService
	Sessions *service.SessionStore

	closers []func()
}

// Close releases clients in reverse construction order
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Setup loads configuration, then builds the logger and telemetry.
func Setup() (*config.Config, *zap.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}

	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Debug:       cfg.Debug,
	}, logger)
	if err != nil {
		logger.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
		shutdownTelemetry = func() {}
	}

	cleanup := func() {
		shutdownTelemetry()
		_ = logger.Sync()
	}
	return cfg, logger, cleanup, nil
}

// Build constructs every pipeline service for cfg.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if !cfg.HasOpenAI() {
		return nil, errNoOpenAI
	}
	logger = logging.OrNop(logger)
	a := &App{Config: cfg, Logger: logger}

	store, err := a.buildVectorStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	archive, err := a.buildArchive(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	oaCfg := openAIConfig(cfg)
	api := openai.NewAPIClient(oaCfg)
	embedder := openai.NewClientWithAPI(api, oaCfg)
	generator := openai.NewChatClient(api, cfg.ChatDeployment)

	var ocrClient service.OCRClient
	if cfg.HasDocIntel() {
		ocrClient = ocr.NewClient(ocr.Config{
			Endpoint:     cfg.DocIntelEndpoint,
			APIKey:       cfg.DocIntelKey,
			RatePerSec:   cfg.OCRRatePerSec,
			PollInterval: cfg.OCRPollInterval,
			MaxWait:      cfg.OCRMaxWait,
		}, logger.Named("ocr"))
	} else {
		logger.Info("document intelligence not configured, scanned pages keep their structural text")
	}

	renderer := pdf.NewRenderer(pdf.RendererConfig{Binary: cfg.PdftoppmPath})
	if ocrClient != nil && !renderer.Available() {
		logger.Warn("pdftoppm not found, OCR fallback will be skipped", zap.String("binary", cfg.PdftoppmPath))
	}

	extractor := service.NewExtractionService(service.NewPDFOpener(pdf.NewOpener(renderer)), ocrClient, logger.Named("extract"))
	indexer := service.NewIndexer(embedder, store, cfg.Collection, logger.Named("index"))
	a.Ingest = service.NewIngestService(extractor, indexer, archive, service.ChunkConfig{
		MaxChars:   cfg.ChunkSize,
		Overlap:    cfg.ChunkOverlap,
		Separators: service.DefaultSeparators,
	}, logger.Named("ingest"))

	a.Chat = service.NewChatService(
		service.NewRouterService(generator, logger.Named("router")),
		service.NewRewriterService(generator, logger.Named("rewriter")),
		service.NewRetrieverService(embedder, store, cfg.Collection, logger.Named("retriever")),
		service.NewAnswerService(generator),
		cfg.TopK,
		logger.Named("chat"),
	)
	a.Sessions = service.NewSessionStore()

	return a, nil
}

func (a *App) buildVectorStore(ctx context.Context) (service.VectorStore, error) {
	cfg := a.Config
	switch cfg.VectorBackend {
	case config.VectorBackendWeaviate:
		store, err := weaviate.NewStore(weaviate.Config{
			Host:   cfg.WeaviateHost,
			Scheme: cfg.WeaviateScheme,
			APIKey: cfg.WeaviateAPIKey,
		}, a.Logger.Named("weaviate"))
		if err != nil {
			return nil, fmt.Errorf("failed to create weaviate store: %w", err)
		}
		if err := store.EnsureCollection(ctx, cfg.Collection); err != nil {
			return nil, fmt.Errorf("failed to ensure weaviate collection: %w", err)
		}
		a.Logger.Info("using weaviate vector store", zap.String("host", cfg.WeaviateHost), zap.String("class", weaviate.ClassName(cfg.Collection)))
		return store, nil
	default:
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.Logger.Info("using pgvector store", zap.String("collection", cfg.Collection))
		return repository.NewDocumentChunkRepository(pool), nil
	}
}

func (a *App) buildArchive(ctx context.Context) (service.DocumentArchive, error) {
	cfg := a.Config
	if !cfg.HasS3() {
		return nil, nil
	}
	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	a.Logger.Info("archiving uploads", zap.String("bucket", client.Bucket()))
	return client, nil
}

// RouterConfig binds the HTTP handlers to the app's services.
func (a *App) RouterConfig() *server.RouterConfig {
	cfg := &server.RouterConfig{
		Logger:          a.Logger.Named("http"),
		DocumentHandler: handlers.NewDocumentHandler(a.Ingest, a.Logger.Named("documents")),
		SessionHandler:  handlers.NewSessionHandler(a.Chat, a.Sessions, a.Logger.Named("sessions")),
		MaxUploadBytes:  a.Config.MaxUploadBytes,
	}
	if a.Config.APIKey != "" {
		cfg.AuthValidator = middleware.StaticKey{Key: a.Config.APIKey}
	}
	return cfg
}

func openAIConfig(cfg *config.Config) openai.Config {
	return openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		Endpoint:            cfg.OpenAIEndpoint,
		APIVersion:          cfg.OpenAIAPIVersion,
		ChatModel:           cfg.ChatDeployment,
		EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingDeployment),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	}
}
