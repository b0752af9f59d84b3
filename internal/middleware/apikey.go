// ===========================================
// Package middleware - Admin API Key Authentication
// ===========================================
// The admin API (/api/...) is guarded by static keys from config.
//
// FLOW:
// 1. Extract the key from X-API-Key or "Authorization: Bearer"
// 2. Hash it with SHA-256
// 3. Compare against every configured hash in constant time
// 4. On success, store the key fingerprint in the gin context
//
// With no keys configured the admin API is open; cmd/server logs a
// warning at startup in that case. Raw keys are never logged.
// ===========================================

package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/user/linkshortener/internal/models"
)

const adminKeyContextKey = "admin_key_id"

// AdminAuth checks requests against a fixed set of API keys.
type AdminAuth struct {
	hashes [][sha256.Size]byte
}

// NewAdminAuth creates the middleware. Empty keys are ignored.
func NewAdminAuth(keys []string) *AdminAuth {
	a := &AdminAuth{}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			a.hashes = append(a.hashes, sha256.Sum256([]byte(k)))
		}
	}
	return a
}

// Enabled reports whether any key is configured.
func (a *AdminAuth) Enabled() bool {
	return len(a.hashes) > 0
}

// RequireKey rejects requests without a valid key with 401.
func (a *AdminAuth) RequireKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}

		id, ok := a.validate(extractKey(c))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error: "Invalid or missing API key",
				Code:  models.ErrCodeUnauthorized,
			})
			return
		}

		c.Set(adminKeyContextKey, id)
		c.Next()
	}
}

// validate returns the fingerprint of rawKey if it matches a configured
// key. Every hash is compared so timing does not depend on the position.
func (a *AdminAuth) validate(rawKey string) (string, bool) {
	if rawKey == "" {
		return "", false
	}
	sum := sha256.Sum256([]byte(rawKey))

	match := 0
	for i := range a.hashes {
		match |= subtle.ConstantTimeCompare(sum[:], a.hashes[i][:])
	}
	if match != 1 {
		return "", false
	}
	return hex.EncodeToString(sum[:4]), true
}

// extractKey reads X-API-Key, then the Bearer token. Query parameters
// are not accepted; they end up in access logs.
func extractKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// AdminKeyID returns the fingerprint of the key that authenticated
// the request, or "" if none did.
func AdminKeyID(c *gin.Context) string {
	return c.GetString(adminKeyContextKey)
}
