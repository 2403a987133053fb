package frontend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/genricoloni/eddy/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrMissingReference is returned when the root document does not reference
// the script or the stylesheet the frontend needs.
var ErrMissingReference = errors.New("frontend asset reference not found")

var (
	scriptTagRe = regexp.MustCompile(`(?is)<script\b[^>]*>`)
	linkTagRe   = regexp.MustCompile(`(?is)<link\b[^>]*>`)
	attrRe      = regexp.MustCompile(`(?is)\b([a-z-]+)\s*=\s*"([^"]*)"`)
)

// Loader populates a frontend Cache from a remote origin
type Loader struct {
	logger  *zap.Logger
	fetcher domain.Fetcher
}

// NewLoader creates a frontend loader that downloads through fetcher
func NewLoader(logger *zap.Logger, fetcher domain.Fetcher) *Loader {
	return &Loader{
		logger:  logger,
		fetcher: fetcher,
	}
}

// Populate fetches the root document at baseURL, locates its module script and
// stylesheet, and fetches both concurrently. It returns a complete Cache or an
// error; a partial cache is never returned.
func (l *Loader) Populate(ctx context.Context, baseURL string) (*Cache, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid frontend url: %w", err)
	}
	root := *base
	if root.Path == "" {
		root.Path = "/"
	}

	l.logger.Info("Caching frontend", zap.String("url", root.String()))

	index, err := l.fetcher.Fetch(ctx, root.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch index document: %w", err)
	}

	scriptRef, cssRef, err := findReferences(string(index))
	if err != nil {
		return nil, err
	}

	scriptURL, err := root.Parse(scriptRef)
	if err != nil {
		return nil, fmt.Errorf("invalid script reference %q: %w", scriptRef, err)
	}
	cssURL, err := root.Parse(cssRef)
	if err != nil {
		return nil, fmt.Errorf("invalid stylesheet reference %q: %w", cssRef, err)
	}

	var script, css []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := l.fetcher.Fetch(gctx, scriptURL.String())
		if err != nil {
			return fmt.Errorf("failed to fetch script %s: %w", scriptURL.Path, err)
		}
		script = data
		return nil
	})
	g.Go(func() error {
		data, err := l.fetcher.Fetch(gctx, cssURL.String())
		if err != nil {
			return fmt.Errorf("failed to fetch stylesheet %s: %w", cssURL.Path, err)
		}
		css = data
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cache := NewCache(
		Asset{Path: IndexPath, ContentType: ContentType(IndexPath), Body: index},
		Asset{Path: scriptURL.Path, ContentType: ContentType(scriptURL.Path), Body: script},
		Asset{Path: cssURL.Path, ContentType: ContentType(cssURL.Path), Body: css},
	)

	l.logger.Info("Frontend cached",
		zap.String("script", scriptURL.Path),
		zap.String("stylesheet", cssURL.Path),
		zap.Int("assets", cache.Len()))

	return cache, nil
}

// findReferences returns the src of the first module script and the href of the
// first stylesheet link in an HTML document.
func findReferences(html string) (script, css string, err error) {
	for _, tag := range scriptTagRe.FindAllString(html, -1) {
		attrs := parseAttrs(tag)
		if attrs["src"] != "" && strings.EqualFold(attrs["type"], "module") {
			script = attrs["src"]
			break
		}
	}
	for _, tag := range linkTagRe.FindAllString(html, -1) {
		attrs := parseAttrs(tag)
		if attrs["href"] != "" && strings.EqualFold(attrs["rel"], "stylesheet") {
			css = attrs["href"]
			break
		}
	}

	switch {
	case script == "" && css == "":
		return "", "", fmt.Errorf("%w: script and stylesheet", ErrMissingReference)
	case script == "":
		return "", "", fmt.Errorf("%w: script", ErrMissingReference)
	case css == "":
		return "", "", fmt.Errorf("%w: stylesheet", ErrMissingReference)
	}
	return script, css, nil
}

func parseAttrs(tag string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(tag, -1) {
		attrs[strings.ToLower(m[1])] = m[2]
	}
	return attrs
}
