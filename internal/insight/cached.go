package insight

import (
	"context"
	"strings"

	"golang.org/x/sync/singleflight"

	"finsight/internal/cache"
	"finsight/internal/core"
	"finsight/internal/log"
)

// CachedGenerator remembers generated text by payload fingerprint and
// collapses identical requests that are in flight at the same time.
// Failures and empty answers are never cached.
type CachedGenerator struct {
	next   Generator
	cache  cache.Cache[string]
	group  singleflight.Group
	logger *log.Logger
}

func NewCachedGenerator(next Generator, c cache.Cache[string], logger *log.Logger) *CachedGenerator {
	if logger == nil {
		logger = log.Discard()
	}
	return &CachedGenerator{
		next:   next,
		cache:  c,
		logger: logger.WithComponent(log.ComponentInsight),
	}
}

func (g *CachedGenerator) Generate(ctx context.Context, req core.InsightRequest) (string, error) {
	key := req.Fingerprint()
	if text, ok := g.cache.Get(key); ok {
		g.logger.Debug("Insight cache hit", log.FieldTitle, req.Title())
		return text, nil
	}

	v, err, shared := g.group.Do(key, func() (any, error) {
		text, err := g.next.Generate(ctx, req)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) != "" {
			g.cache.Set(key, text)
		}
		return text, nil
	})
	if shared {
		g.logger.Debug("Insight request shared with an in-flight call", log.FieldTitle, req.Title())
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
