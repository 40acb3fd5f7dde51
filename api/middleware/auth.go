package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/opinionprobe/models"
)

// IdentityKey is the gin context key holding the caller's key fingerprint.
const IdentityKey = "probe_identity"

// Auth returns API-key authentication middleware.
//
// Accepted headers:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// Keys are compared in constant time. Downstream handlers only see a short
// fingerprint of the key, never the key itself. With no non-empty keys the
// middleware lets everything through.
func Auth(apiKeys []string) gin.HandlerFunc {
	var keys [][]byte
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		presented := presentedKey(c)
		if presented == "" {
			abortUnauthorized(c, "missing API key: provide X-API-Key header or Authorization: Bearer <key>")
			return
		}
		if !matchAny(keys, []byte(presented)) {
			abortUnauthorized(c, "invalid API key")
			return
		}

		c.Set(IdentityKey, fingerprint(presented))
		c.Next()
	}
}

func matchAny(keys [][]byte, presented []byte) bool {
	ok := 0
	for _, k := range keys {
		ok |= subtle.ConstantTimeCompare(k, presented)
	}
	return ok == 1
}

func fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "key:" + hex.EncodeToString(sum[:8])
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": models.ErrorDetail{Code: models.ErrCodeUnauthorized, Message: msg},
	})
}

// presentedKey reads X-API-Key, then a Bearer token.
func presentedKey(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader("X-API-Key")); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}
