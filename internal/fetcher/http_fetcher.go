package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	_maxBodySize    = 10 * 1024 * 1024 // 10 MB
	_defaultTimeout = 10 * time.Second
	_userAgent      = "eddyDaemon/1.0"
)

// HTTPFetcher downloads frontend assets and artwork over HTTP/HTTPS.
// It never retries: a failed request is reported to the caller as is.
type HTTPFetcher struct {
	logger *zap.Logger
	client *http.Client
}

// NewHTTPFetcher creates a new HTTP-based fetcher instance
func NewHTTPFetcher(logger *zap.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		logger: logger,
		client: &http.Client{
			Timeout: _defaultTimeout, // Upper bound even when the caller's context has none
		},
	}
}

// Fetch downloads the body of url
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	data, _, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("Resource fetched successfully", zap.Int("bytes", len(data)), zap.String("url", url))
	return data, nil
}

// FetchImage downloads image data from url, rejecting non-image responses
func (f *HTTPFetcher) FetchImage(ctx context.Context, url string) ([]byte, error) {
	data, contentType, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}

	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("url is not an image: %s", contentType)
	}

	f.logger.Debug("Image fetched successfully", zap.Int("bytes", len(data)), zap.String("url", url))
	return data, nil
}

func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", _userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, _maxBodySize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read body: %w", err)
	}

	return data, resp.Header.Get("Content-Type"), nil
}
