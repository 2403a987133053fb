package server

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/genricoloni/eddy/internal/config"
	"github.com/genricoloni/eddy/internal/domain"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const maxBlur = 100

type artKey struct {
	url  string
	size int
	blur float64
}

// ArtHandler serves the current album or artist art as a square JPEG thumbnail
type ArtHandler struct {
	logger    *zap.Logger
	store     domain.PlaybackStore
	fetcher   domain.Fetcher
	processor domain.ImageProcessor
	cfg       config.ArtConfig
	cache     *lru.Cache[artKey, []byte]
}

// NewArtHandler creates an art handler caching up to cfg.Art.CacheEntries thumbnails
func NewArtHandler(
	logger *zap.Logger,
	cfg *config.AppConfig,
	store domain.PlaybackStore,
	fetcher domain.Fetcher,
	processor domain.ImageProcessor,
) (*ArtHandler, error) {
	entries := cfg.Art.CacheEntries
	if entries < 1 {
		entries = 1
	}
	cache, err := lru.New[artKey, []byte](entries)
	if err != nil {
		return nil, fmt.Errorf("failed to create art cache: %w", err)
	}

	return &ArtHandler{
		logger:    logger,
		store:     store,
		fetcher:   fetcher,
		processor: processor,
		cfg:       cfg.Art,
		cache:     cache,
	}, nil
}

func (h *ArtHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	kind, opts, err := h.parseQuery(r)
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	url := h.artURL(kind)
	if url == "" {
		notFound(w)
		return
	}

	key := artKey{url: url, size: opts.Size, blur: opts.Blur}
	if data, ok := h.cache.Get(key); ok {
		writeJPEG(w, data)
		return
	}

	raw, err := h.fetcher.FetchImage(r.Context(), url)
	if err != nil {
		h.logger.Warn("Failed to fetch art", zap.String("url", url), zap.Error(err))
		writeText(w, http.StatusBadGateway, "Bad Gateway")
		return
	}

	data, err := h.processor.Process(r.Context(), raw, opts)
	if err != nil {
		h.logger.Warn("Failed to render art", zap.String("url", url), zap.Error(err))
		writeText(w, http.StatusBadGateway, "Bad Gateway")
		return
	}

	h.cache.Add(key, data)
	writeJPEG(w, data)
}

func (h *ArtHandler) parseQuery(r *http.Request) (domain.ArtKind, domain.ArtOptions, error) {
	q := r.URL.Query()
	opts := domain.ArtOptions{Size: h.cfg.Size}

	kind := domain.ArtKind(q.Get("kind"))
	switch kind {
	case "":
		kind = domain.ArtAlbum
	case domain.ArtAlbum, domain.ArtArtist:
	default:
		return "", opts, fmt.Errorf("invalid kind %q", kind)
	}

	if s := q.Get("size"); s != "" {
		size, err := strconv.Atoi(s)
		if err != nil || size < 1 || size > h.cfg.MaxSize {
			return "", opts, fmt.Errorf("size must be between 1 and %d", h.cfg.MaxSize)
		}
		opts.Size = size
	}

	if s := q.Get("blur"); s != "" {
		blur, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(blur) || blur < 0 || blur > maxBlur {
			return "", opts, fmt.Errorf("blur must be between 0 and %d", maxBlur)
		}
		opts.Blur = blur
	}

	return kind, opts, nil
}

// artURL returns the art URL of the current snapshot, or "" when there is none
func (h *ArtHandler) artURL(kind domain.ArtKind) string {
	snap, ok := h.store.Snapshot()
	if !ok {
		return ""
	}

	var url *string
	switch kind {
	case domain.ArtArtist:
		url = snap.ArtistArt
	default:
		url = snap.AlbumArt
	}
	if url == nil {
		return ""
	}
	return *url
}

func writeJPEG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
