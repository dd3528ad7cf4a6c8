// Package cache memoizes annotation bundles for the lifetime of the process.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ppiankov/varscore/internal/model"
)

// Cache stores annotation bundles by key
type Cache interface {
	Get(key string) (model.AnnotationResult, bool)
	Set(key string, value model.AnnotationResult, ttl time.Duration)
	Delete(key string)
	Clear()
	Len() int
}

// CacheKey derives a key from a variant key and the ordered source list, so
// bundles built from a different source set never collide.
func CacheKey(variantKey string, sources []string) string {
	hash := sha256.Sum256([]byte(strings.Join(sources, ",") + "|" + variantKey))
	return "varscore:v1:" + hex.EncodeToString(hash[:])
}
