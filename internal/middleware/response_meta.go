package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"

	// MetaCacheHit reports whether the payload was served from the read-through cache.
	MetaCacheHit = "cache_hit"
	// MetaProcessingTime is the handler latency in milliseconds.
	MetaProcessingTime = "processing_time_ms"
)

// WithResponseMeta attaches a meta map to the request so handlers can report cache and timing details.
// Handlers must read the map with ExtractMeta before writing the response.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Set(startedAtKey, time.Now())
		c.Next()
	}
}

const startedAtKey = "response_meta_started_at"

// SetMeta stores a single meta entry.
func SetMeta(c *gin.Context, key string, value interface{}) {
	metaMap(c)[key] = value
}

// SetCacheHit marks whether the response came from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, MetaCacheHit, hit)
}

// ExtractMeta returns the meta map, stamping processing time when WithResponseMeta ran.
// It returns nil when nothing was recorded.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	raw, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	if started, ok := c.Get(startedAtKey); ok {
		if at, ok := started.(time.Time); ok {
			if _, exists := meta[MetaProcessingTime]; !exists {
				meta[MetaProcessingTime] = time.Since(at).Milliseconds()
			}
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func metaMap(c *gin.Context) map[string]interface{} {
	if raw, ok := c.Get(responseMetaKey); ok {
		if meta, ok := raw.(map[string]interface{}); ok {
			return meta
		}
	}
	meta := map[string]interface{}{}
	c.Set(responseMetaKey, meta)
	return meta
}
