package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestHTTPFetcher_FetchImage(t *testing.T) {
	tests := []struct {
		name           string
		contentType    string
		responseBody   []byte
		statusCode     int
		ctxFunc        func() (context.Context, context.CancelFunc)
		expectedError  string
		expectedLength int
	}{
		{
			name:           "Success - Valid Image",
			contentType:    "image/jpeg",
			responseBody:   []byte("fake-image-data"),
			statusCode:     http.StatusOK,
			expectedError:  "",
			expectedLength: 15,
		},
		{
			name:          "Error - 404 Not Found",
			contentType:   "image/jpeg",
			statusCode:    http.StatusNotFound,
			expectedError: "unexpected status code: 404",
		},
		{
			name:          "Error - Invalid Content Type",
			contentType:   "text/plain",
			responseBody:  []byte("not-an-image"),
			statusCode:    http.StatusOK,
			expectedError: "url is not an image",
		},
		{
			name:        "Success - Response Truncated At Limit",
			contentType: "image/png",
			// io.ReadAll stops at the limit without error, returning truncated data
			responseBody:   []byte(strings.Repeat("a", 11*1024*1024)),
			statusCode:     http.StatusOK,
			expectedError:  "",
			expectedLength: 10 * 1024 * 1024,
		},
		{
			name: "Error - Context Cancelled",
			ctxFunc: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				cancel() // Cancel immediately
				return ctx, cancel
			},
			expectedError: "context canceled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write(tt.responseBody)
			}))
			defer server.Close()

			var ctx context.Context
			var cancel context.CancelFunc
			if tt.ctxFunc != nil {
				ctx, cancel = tt.ctxFunc()
			} else {
				ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
			}
			defer cancel()

			fetcher := NewHTTPFetcher(zap.NewNop())
			data, err := fetcher.FetchImage(ctx, server.URL)

			if tt.expectedError != "" {
				if err == nil {
					t.Fatalf("expected error containing '%s', got nil", tt.expectedError)
				}
				if !strings.Contains(err.Error(), tt.expectedError) {
					t.Errorf("expected error '%s' to contain '%s'", err.Error(), tt.expectedError)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(data) != tt.expectedLength {
				t.Errorf("expected data length %d, got %d", tt.expectedLength, len(data))
			}
		})
	}
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		case "/assets/index.js":
			w.Header().Set("Content-Type", "text/javascript")
			_, _ = w.Write([]byte("console.log(1)"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(zap.NewNop())

	// Any content type is accepted
	data, err := fetcher.Fetch(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "<html></html>" {
		t.Errorf("unexpected body %q", data)
	}
	if userAgent != "eddyDaemon/1.0" {
		t.Errorf("unexpected user agent %q", userAgent)
	}

	if _, err := fetcher.Fetch(context.Background(), server.URL+"/assets/index.js"); err != nil {
		t.Errorf("unexpected error for script: %v", err)
	}

	_, err = fetcher.Fetch(context.Background(), server.URL+"/missing.css")
	if err == nil || !strings.Contains(err.Error(), "unexpected status code: 404") {
		t.Errorf("expected 404 error, got %v", err)
	}

	_, err = fetcher.Fetch(context.Background(), "http://[::1]:namedport")
	if err == nil || !strings.Contains(err.Error(), "failed to create request") {
		t.Errorf("expected request creation error, got %v", err)
	}
}
