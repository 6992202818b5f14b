package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/partner"
	"github.com/loanspur/paymentvalut-sub005/internal/platform/persistence"
)

// PartnerRepository implements the partner.Repository interface for PostgreSQL
type PartnerRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewPartnerRepository creates a new PostgreSQL partner repository
func NewPartnerRepository(logger *slog.Logger, db *persistence.PostgresDB) partner.Repository {
	return &PartnerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// GetByID retrieves an active partner by its ID
func (r *PartnerRepository) GetByID(ctx context.Context, id uuid.UUID) (*partner.Partner, error) {
	return r.getBy(ctx, "id", id, id.String())
}

// GetByAPIKeyHash retrieves an active partner by the SHA-256 hex digest of
// its API key
func (r *PartnerRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*partner.Partner, error) {
	return r.getBy(ctx, "api_key_hash", hash, "api key")
}

// GetByShortCode retrieves an active partner by its paybill short code
func (r *PartnerRepository) GetByShortCode(ctx context.Context, shortCode string) (*partner.Partner, error) {
	return r.getBy(ctx, "short_code", shortCode, shortCode)
}

func (r *PartnerRepository) getBy(ctx context.Context, column string, value any, key string) (*partner.Partner, error) {
	query := `
		SELECT id, name, short_code, api_key_hash, is_active, created_at, updated_at
		FROM partners
		WHERE ` + column + ` = $1 AND is_active = TRUE
	`

	var p partner.Partner
	err := r.querier.QueryRow(ctx, query, value).Scan(
		&p.ID,
		&p.Name,
		&p.ShortCode,
		&p.APIKeyHash,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, partner.ErrPartnerNotFound{Key: key}
		}
		r.logger.Error("Failed to get partner", "column", column, "error", err)
		return nil, fmt.Errorf("failed to get partner by %s: %w", column, err)
	}

	return &p, nil
}
