package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"oracletom/internal/logging"
	"oracletom/internal/services"
)

const (
	predictPath       = "/predict"
	responseBodyLimit = 64 << 20
)

// HTTPOption configures an HTTPModel.
type HTTPOption func(*HTTPModel)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(m *HTTPModel) {
		if client != nil {
			m.client = client
		}
	}
}

// WithHTTPLogger attaches a logger.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(m *HTTPModel) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// HTTPModel posts batches to {url}/predict.
type HTTPModel struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPModel constructs an HTTPModel.
func NewHTTPModel(baseURL string, timeoutSeconds int, opts ...HTTPOption) (*HTTPModel, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "oracle", "http model", fmt.Sprintf("invalid url %q", baseURL), err)
	}
	m := &HTTPModel{
		baseURL: baseURL,
		client:  &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "oracle-http")
	return m, nil
}

// Predict implements Model.
func (m *HTTPModel) Predict(ctx context.Context, batch *Batch) ([][]float64, error) {
	data, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}
	endpoint := m.baseURL + predictPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "oracle", "POST "+predictPath, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("read model response: %w", err)
	}
	if resp.StatusCode >= 400 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 4096 {
			snippet = snippet[:4096]
		}
		marker := services.ErrExternalTool
		if resp.StatusCode >= 500 {
			marker = services.ErrTransient
		}
		return nil, services.Wrap(marker, "oracle", "POST "+predictPath, fmt.Sprintf("status %d: %s", resp.StatusCode, snippet), nil)
	}
	m.logger.Debug("model request finished",
		logging.String("url", endpoint),
		logging.Int("objects", batch.Len()),
		logging.Duration("latency", time.Since(started)),
	)
	probs, err := decodeResponse(body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "oracle", "decode output", endpoint, err)
	}
	return probs, nil
}
