package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey   = "response_meta"
	cacheHitKey       = "cache_hit"
	processingTimeKey = "processing_time_ms"
)

// WithResponseMeta collects envelope metadata (cache hits, processing time) for
// requests under one of pathPrefixes. With no prefixes every request is covered.
// Requests outside the prefixes carry no meta map, so SetCacheHit is a no-op there.
func WithResponseMeta(pathPrefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !matchesPrefix(c.Request.URL.Path, pathPrefixes) {
			c.Next()
			return
		}
		start := time.Now()
		meta := map[string]interface{}{}
		c.Set(responseMetaKey, meta)
		c.Next()
		if _, exists := meta[processingTimeKey]; !exists {
			meta[processingTimeKey] = time.Since(start).Milliseconds()
		}
	}
}

// SetCacheHit records whether the response was served from the summary cache.
func SetCacheHit(c *gin.Context, hit bool) {
	if meta := ExtractMeta(c); meta != nil {
		meta[cacheHitKey] = hit
	}
}

// ExtractMeta returns the metadata map stored on the context, or nil when the
// route is outside the metadata scope.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	return nil
}

func matchesPrefix(path string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
