package partner

import (
	"time"

	"github.com/google/uuid"
)

// Partner is a tenant organization disbursing and collecting money through
// the platform. API callers authenticate with an API key whose SHA-256 hex
// digest is stored in APIKeyHash.
type Partner struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	ShortCode  string    `json:"short_code"`
	APIKeyHash string    `json:"-"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
