package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/balance"
	"github.com/loanspur/paymentvalut-sub005/internal/platform/persistence"
)

const balanceColumns = `
	id, conversation_id, originator_conversation_id, status,
	working_balance, utility_balance, charges_balance,
	result_code, result_desc, created_at, updated_at
`

// BalanceRepository implements the balance.Repository interface for PostgreSQL
type BalanceRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewBalanceRepository creates a new PostgreSQL balance request repository
func NewBalanceRepository(logger *slog.Logger, db *persistence.PostgresDB) balance.Repository {
	return &BalanceRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create stores a new balance check request
func (r *BalanceRepository) Create(ctx context.Context, req *balance.Request) error {
	query := `
		INSERT INTO balance_requests (
			id, conversation_id, originator_conversation_id, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.querier.Exec(ctx, query,
		req.ID,
		req.ConversationID,
		req.OriginatorConversationID,
		req.Status,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create balance request", "error", err)
		return fmt.Errorf("failed to create balance request: %w", err)
	}

	return nil
}

// SetConversationIDs records the gateway's identifiers for an already
// persisted request
func (r *BalanceRepository) SetConversationIDs(ctx context.Context, id uuid.UUID, conversationID, originatorConversationID string) error {
	query := `
		UPDATE balance_requests
		SET conversation_id = $1, originator_conversation_id = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, conversationID, originatorConversationID, id)
	if err != nil {
		r.logger.Error("Failed to set balance request conversation ids", "id", id.String(), "error", err)
		return fmt.Errorf("failed to set balance request conversation ids: %w", err)
	}

	if result.RowsAffected() == 0 {
		return balance.ErrRequestNotFound{ID: id}
	}

	return nil
}

// GetByID retrieves a balance request by its ID
func (r *BalanceRepository) GetByID(ctx context.Context, id uuid.UUID) (*balance.Request, error) {
	query := `
		SELECT ` + balanceColumns + `
		FROM balance_requests
		WHERE id = $1
	`

	req, err := r.scanRow(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, balance.ErrRequestNotFound{ID: id}
		}
		r.logger.Error("Failed to get balance request", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get balance request: %w", err)
	}

	return req, nil
}

// GetByConversationID retrieves a balance request by either gateway
// conversation identifier, returning nil, nil when none matches
func (r *BalanceRepository) GetByConversationID(ctx context.Context, conversationID string) (*balance.Request, error) {
	query := `
		SELECT ` + balanceColumns + `
		FROM balance_requests
		WHERE conversation_id = $1 OR originator_conversation_id = $1
	`

	req, err := r.scanRow(r.querier.QueryRow(ctx, query, conversationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get balance request by conversation ID",
			"conversation_id", conversationID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to get balance request by conversation ID: %w", err)
	}

	return req, nil
}

// Complete transitions a pending request to completed with the callback
// result. A redelivered callback finds no pending row and returns false.
func (r *BalanceRepository) Complete(ctx context.Context, id uuid.UUID, res *balance.Result) (bool, error) {
	query := `
		UPDATE balance_requests
		SET status = $1, working_balance = $2, utility_balance = $3, charges_balance = $4,
			result_code = $5, result_desc = $6, updated_at = NOW()
		WHERE id = $7 AND status = $8
	`

	result, err := r.querier.Exec(ctx, query,
		balance.StatusCompleted,
		res.WorkingBalance,
		res.UtilityBalance,
		res.ChargesBalance,
		res.ResultCode,
		res.ResultDesc,
		id,
		balance.StatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to complete balance request", "id", id.String(), "error", err)
		return false, fmt.Errorf("failed to complete balance request: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// List retrieves a page of balance requests, newest first
func (r *BalanceRepository) List(ctx context.Context, limit, offset int) ([]*balance.Request, error) {
	query := `
		SELECT ` + balanceColumns + `
		FROM balance_requests
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.querier.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list balance requests", "error", err)
		return nil, fmt.Errorf("failed to list balance requests: %w", err)
	}
	defer rows.Close()

	var requests []*balance.Request
	for rows.Next() {
		req, err := r.scanRow(rows)
		if err != nil {
			r.logger.Error("Failed to scan balance request", "error", err)
			return nil, fmt.Errorf("failed to scan balance request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over balance requests", "error", err)
		return nil, fmt.Errorf("error iterating over balance requests: %w", err)
	}

	return requests, nil
}

func (r *BalanceRepository) scanRow(row rowScanner) (*balance.Request, error) {
	var req balance.Request
	err := row.Scan(
		&req.ID,
		&req.ConversationID,
		&req.OriginatorConversationID,
		&req.Status,
		&req.WorkingBalance,
		&req.UtilityBalance,
		&req.ChargesBalance,
		&req.ResultCode,
		&req.ResultDesc,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
