package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/genricoloni/eddy/internal/config"
	"github.com/genricoloni/eddy/internal/domain"
	"github.com/genricoloni/eddy/internal/frontend"
	"go.uber.org/zap"
)

const (
	pathNowPlaying = "/now-playing"
	pathHealth     = "/health"
	pathArt        = "/now-playing/art"
)

// Router is the single entry point of the HTTP surface
type Router struct {
	logger *zap.Logger
	cfg    config.ServerConfig
	store  domain.PlaybackStore
	cache  *frontend.Cache
	art    http.Handler
	now    func() time.Time
}

// NewRouter creates a router serving the playback API, the health check and,
// when cache is non-nil, the cached frontend. art may be nil.
func NewRouter(
	logger *zap.Logger,
	cfg config.ServerConfig,
	store domain.PlaybackStore,
	cache *frontend.Cache,
	art http.Handler,
) *Router {
	return &Router{
		logger: logger,
		cfg:    cfg,
		store:  store,
		cache:  cache,
		art:    art,
		now:    time.Now,
	}
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if rt.cfg.Secure && !rt.authorized(r) {
		writeText(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if r.Method != http.MethodGet {
		notFound(w)
		return
	}

	switch r.URL.Path {
	case pathNowPlaying:
		rt.serveNowPlaying(w)
		return
	case pathHealth:
		writeText(w, http.StatusOK, "OK")
		return
	case pathArt:
		if rt.art != nil {
			rt.art.ServeHTTP(w, r)
			return
		}
	}

	if asset, ok := rt.cache.Lookup(r.URL.Path); ok {
		w.Header().Set("Content-Type", asset.ContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(asset.Body)
		return
	}

	notFound(w)
}

// authorized requires the exact header "Bearer <apiKey>"
func (rt *Router) authorized(r *http.Request) bool {
	got := r.Header.Get("Authorization")
	want := "Bearer " + rt.cfg.APIKey
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (rt *Router) serveNowPlaying(w http.ResponseWriter) {
	body, err := json.Marshal(rt.store.NowPlaying(rt.now()))
	if err != nil {
		rt.logger.Error("Failed to encode now playing", zap.Error(err))
		writeText(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func setCORSHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func notFound(w http.ResponseWriter) {
	writeText(w, http.StatusNotFound, "Not Found")
}
