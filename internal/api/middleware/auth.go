package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loanspur/paymentvalut-sub005/internal/domain/partner"
)

const (
	// APIKeyHeader is the HTTP header carrying the partner API key
	APIKeyHeader = "X-API-Key"

	// PartnerKey is the key used to store the resolved partner in the context
	PartnerKey = "partner"
)

// PartnerAuth resolves the calling partner from the API key header. Keys are
// stored hashed, so the lookup is by SHA-256 of the presented key. Requests
// without a key, or with a key that matches no active partner, are rejected
// before reaching the handler.
func PartnerAuth(logger *slog.Logger, partners partner.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(APIKeyHeader)
		if apiKey == "" {
			abortUnauthorized(c, "Missing API key")
			return
		}

		sum := sha256.Sum256([]byte(apiKey))
		hash := hex.EncodeToString(sum[:])

		p, err := partners.GetByAPIKeyHash(c.Request.Context(), hash)
		if err != nil {
			var notFound partner.ErrPartnerNotFound
			if errors.As(err, &notFound) {
				logger.Warn("Rejected request with unknown API key", "client_ip", c.ClientIP())
				abortUnauthorized(c, "Invalid API key")
				return
			}
			logger.Error("Failed to resolve partner from API key", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"code":    "INTERNAL_SERVER_ERROR",
					"message": "An internal server error occurred",
				},
			})
			return
		}

		c.Set(PartnerKey, p)
		c.Next()
	}
}

// GetPartner retrieves the authenticated partner from the gin context
func GetPartner(c *gin.Context) (*partner.Partner, bool) {
	v, exists := c.Get(PartnerKey)
	if !exists {
		return nil, false
	}
	p, ok := v.(*partner.Partner)
	return p, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	response := gin.H{
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	}
	if correlationID := GetCorrelationID(c); correlationID != "" {
		response["correlation_id"] = correlationID
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, response)
}
