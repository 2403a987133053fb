package frontend

import (
	"path"
	"strings"
)

// IndexPath is the canonical key of the root document
const IndexPath = "/index.html"

// Asset is a cached frontend file
type Asset struct {
	Path        string
	ContentType string
	Body        []byte
}

// Cache is an immutable set of frontend assets keyed by request path.
// A nil *Cache is valid and always misses.
type Cache struct {
	assets map[string]Asset
}

// NewCache builds a cache holding assets
func NewCache(assets ...Asset) *Cache {
	c := &Cache{assets: make(map[string]Asset, len(assets))}
	for _, a := range assets {
		c.assets[a.Path] = a
	}
	return c
}

// Lookup returns the asset cached for the request path p.
// The root path is served as the index document.
func (c *Cache) Lookup(p string) (Asset, bool) {
	if c == nil {
		return Asset{}, false
	}
	if p == "" || p == "/" {
		p = IndexPath
	}
	a, ok := c.assets[p]
	return a, ok
}

// Len returns the number of cached assets
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.assets)
}

// ContentType infers the content type served for a request path
func ContentType(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".css":
		return "text/css"
	case ".js", ".mjs":
		return "text/javascript"
	default:
		return "text/html"
	}
}
