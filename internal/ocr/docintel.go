// Package ocr converts rendered page images to text through the Azure AI
// Document Intelligence "prebuilt-read" model.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultModelID      = "prebuilt-read"
	DefaultAPIVersion   = "2024-11-30"
	DefaultPollInterval = time.Second
	DefaultMaxWait      = 2 * time.Minute

	ContentTypeJPEG = "image/jpeg"

	statusSucceeded  = "succeeded"
	statusFailed     = "failed"
	statusRunning    = "running"
	statusNotStarted = "notStarted"
)

var (
	ErrNoOperationLocation = errors.New("analyze response has no Operation-Location header")
	ErrAnalyzeFailed       = errors.New("document analysis failed")
	ErrAnalyzeTimeout      = errors.New("document analysis did not finish in time")
)

// Config holds configuration for Client
type Config struct {
	Endpoint     string
	APIKey       string
	ModelID      string
	APIVersion   string
	RatePerSec   float64 // <= 0 disables throttling
	PollInterval time.Duration
	MaxWait      time.Duration
	HTTPClient   *http.Client
}

// Client calls the Document Intelligence analyze API
type Client struct {
	endpoint     string
	apiKey       string
	modelID      string
	apiVersion   string
	httpClient   *http.Client
	limiter      *rate.Limiter
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *zap.Logger
}

// AnalyzeResult is the subset of the analyze operation result we read
type AnalyzeResult struct {
	Pages []Page `json:"pages"`
}

type Page struct {
	PageNumber int    `json:"pageNumber"`
	Lines      []Line `json:"lines"`
}

type Line struct {
	Content string `json:"content"`
}

type operationResponse struct {
	Status        string         `json:"status"`
	AnalyzeResult *AnalyzeResult `json:"analyzeResult"`
	Error         *serviceError  `json:"error"`
}

type serviceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient creates a new Client. A nil logger discards log output.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}

	return &Client{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:       cfg.APIKey,
		modelID:      cfg.ModelID,
		apiVersion:   cfg.APIVersion,
		httpClient:   cfg.HTTPClient,
		limiter:      rate.NewLimiter(limit, 1),
		pollInterval: cfg.PollInterval,
		maxWait:      cfg.MaxWait,
		logger:       logger,
	}
}

// ExtractText returns the recognized lines of a JPEG page image joined by
// newlines. Any failure is logged and yields "".
func (c *Client) ExtractText(ctx context.Context, image []byte) string {
	result, err := c.Analyze(ctx, image, ContentTypeJPEG)
	if err != nil {
		c.logger.Warn("ocr failed, treating page as empty", zap.Error(err), zap.Int("image_bytes", len(image)))
		return ""
	}
	return JoinLines(result)
}

// Analyze submits the image and waits for the analyze operation to finish.
func (c *Client) Analyze(ctx context.Context, image []byte, contentType string) (*AnalyzeResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ocr rate limiter: %w", err)
	}

	operationURL, err := c.submit(ctx, image, contentType)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.maxWait)
	for {
		op, err := c.poll(ctx, operationURL)
		if err != nil {
			return nil, err
		}

		switch op.Status {
		case statusSucceeded:
			if op.AnalyzeResult == nil {
				return &AnalyzeResult{}, nil
			}
			return op.AnalyzeResult, nil
		case statusFailed:
			if op.Error != nil {
				return nil, fmt.Errorf("%w: %s: %s", ErrAnalyzeFailed, op.Error.Code, op.Error.Message)
			}
			return nil, ErrAnalyzeFailed
		case statusRunning, statusNotStarted:
		default:
			return nil, fmt.Errorf("unexpected analyze status %q", op.Status)
		}

		if time.Now().After(deadline) {
			return nil, ErrAnalyzeTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) submit(ctx context.Context, image []byte, contentType string) (string, error) {
	url := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?api-version=%s", c.endpoint, c.modelID, c.apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("failed to create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("analyze request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return "", statusError("analyze", resp)
	}

	location := resp.Header.Get("Operation-Location")
	if location == "" {
		return "", ErrNoOperationLocation
	}
	return location, nil
}

func (c *Client) poll(ctx context.Context, operationURL string) (*operationResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("poll", resp)
	}

	var op operationResponse
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return nil, fmt.Errorf("failed to decode analyze result: %w", err)
	}
	return &op, nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("%s returned %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
}

// JoinLines concatenates recognized lines in page order then line order.
func JoinLines(result *AnalyzeResult) string {
	if result == nil {
		return ""
	}
	var lines []string
	for _, page := range result.Pages {
		for _, line := range page.Lines {
			lines = append(lines, line.Content)
		}
	}
	return strings.Join(lines, "\n")
}
