package parsecache

import (
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/cache/keys"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/model"
)

type Parser interface {
	Parse(content []byte, format model.Format) ([]model.Record, error)
}

// CachingParser serves repeated uploads of identical bytes from the cache.
type CachingParser struct {
	cache   *Cache
	inner   Parser
	csvMode string
}

// Wrap returns a parser backed by c. csvMode is part of every key, since the
// same bytes can parse differently under another CSV mode.
func (c *Cache) Wrap(inner Parser, csvMode string) *CachingParser {
	return &CachingParser{cache: c, inner: inner, csvMode: csvMode}
}

func (p *CachingParser) Key(content []byte, format model.Format) string {
	return keys.Content(string(format), p.csvMode, content)
}

func (p *CachingParser) Parse(content []byte, format model.Format) ([]model.Record, error) {
	recs, _, err := p.cache.GetOrParse(p.Key(content, format), func() ([]model.Record, error) {
		return p.inner.Parse(content, format)
	})
	return recs, err
}
