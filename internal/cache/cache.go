package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache stores opaque byte values under string keys
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Namespaces used by policyrag
const (
	NamespaceEmbedding = "embedding"
	NamespaceWeb       = "web"
)

// Key builds a versioned cache key from a namespace and the parts that
// identify the value. Parts are hashed so keys are safe as file names.
func Key(namespace string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return "policyrag_v1_" + namespace + "_" + hex.EncodeToString(hash[:])
}
