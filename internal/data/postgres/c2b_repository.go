package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/c2b"
	"github.com/loanspur/paymentvalut-sub005/internal/platform/persistence"
)

const c2bColumns = `
	id, transaction_id, trans_type, trans_time, amount, short_code,
	bill_ref_number, account_number, msisdn, customer_name,
	partner_id, status, failure_reason, created_at, updated_at
`

// C2BRepository implements the c2b.Repository interface for PostgreSQL
type C2BRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewC2BRepository creates a new PostgreSQL inbound transaction repository
func NewC2BRepository(logger *slog.Logger, db *persistence.PostgresDB) c2b.Repository {
	return &C2BRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *C2BRepository) WithTx(tx pgx.Tx) c2b.Repository {
	return &C2BRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new inbound transaction. The unique transaction_id index
// rejects duplicate notifications at the database level.
func (r *C2BRepository) Create(ctx context.Context, tx *c2b.Transaction) error {
	query := `
		INSERT INTO c2b_transactions (
			id, transaction_id, trans_type, trans_time, amount, short_code,
			bill_ref_number, account_number, msisdn, customer_name,
			partner_id, status, failure_reason, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.querier.Exec(ctx, query,
		tx.ID,
		tx.TransactionID,
		tx.TransType,
		tx.TransTime,
		tx.Amount,
		tx.ShortCode,
		tx.BillRefNumber,
		tx.AccountNumber,
		tx.Msisdn,
		tx.CustomerName,
		tx.PartnerID,
		tx.Status,
		tx.FailureReason,
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create inbound transaction",
			"transaction_id", tx.TransactionID,
			"error", err,
		)
		return fmt.Errorf("failed to create inbound transaction: %w", err)
	}

	return nil
}

// GetByID retrieves an inbound transaction by its ID
func (r *C2BRepository) GetByID(ctx context.Context, id uuid.UUID) (*c2b.Transaction, error) {
	query := `
		SELECT ` + c2bColumns + `
		FROM c2b_transactions
		WHERE id = $1
	`

	tx, err := r.scanRow(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, c2b.ErrTransactionNotFound{ID: id}
		}
		r.logger.Error("Failed to get inbound transaction", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get inbound transaction: %w", err)
	}

	return tx, nil
}

// GetByTransactionID retrieves an inbound transaction by the gateway
// transaction ID, returning nil, nil when it has not been seen
func (r *C2BRepository) GetByTransactionID(ctx context.Context, transactionID string) (*c2b.Transaction, error) {
	query := `
		SELECT ` + c2bColumns + `
		FROM c2b_transactions
		WHERE transaction_id = $1
	`

	tx, err := r.scanRow(r.querier.QueryRow(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get inbound transaction by transaction ID",
			"transaction_id", transactionID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to get inbound transaction by transaction ID: %w", err)
	}

	return tx, nil
}

// Allocate assigns an unmatched transaction to a partner. The update is
// conditional on the unmatched status so a transaction can only be allocated
// once.
func (r *C2BRepository) Allocate(ctx context.Context, id uuid.UUID, partnerID uuid.UUID) (bool, error) {
	query := `
		UPDATE c2b_transactions
		SET partner_id = $1, status = $2, failure_reason = '', updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := r.querier.Exec(ctx, query, partnerID, c2b.StatusCompleted, id, c2b.StatusUnmatched)
	if err != nil {
		r.logger.Error("Failed to allocate inbound transaction", "id", id.String(), "error", err)
		return false, fmt.Errorf("failed to allocate inbound transaction: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// List retrieves a page of inbound transactions, newest first. An empty
// status matches all statuses.
func (r *C2BRepository) List(ctx context.Context, status string, limit, offset int) ([]*c2b.Transaction, error) {
	query := `
		SELECT ` + c2bColumns + `
		FROM c2b_transactions
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, status, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list inbound transactions", "error", err)
		return nil, fmt.Errorf("failed to list inbound transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*c2b.Transaction
	for rows.Next() {
		tx, err := r.scanRow(rows)
		if err != nil {
			r.logger.Error("Failed to scan inbound transaction", "error", err)
			return nil, fmt.Errorf("failed to scan inbound transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over inbound transactions", "error", err)
		return nil, fmt.Errorf("error iterating over inbound transactions: %w", err)
	}

	return transactions, nil
}

// Count counts inbound transactions for pagination
func (r *C2BRepository) Count(ctx context.Context, status string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM c2b_transactions
		WHERE ($1 = '' OR status = $1)
	`

	var count int64
	if err := r.querier.QueryRow(ctx, query, status).Scan(&count); err != nil {
		r.logger.Error("Failed to count inbound transactions", "error", err)
		return 0, fmt.Errorf("failed to count inbound transactions: %w", err)
	}

	return count, nil
}

func (r *C2BRepository) scanRow(row rowScanner) (*c2b.Transaction, error) {
	var tx c2b.Transaction
	err := row.Scan(
		&tx.ID,
		&tx.TransactionID,
		&tx.TransType,
		&tx.TransTime,
		&tx.Amount,
		&tx.ShortCode,
		&tx.BillRefNumber,
		&tx.AccountNumber,
		&tx.Msisdn,
		&tx.CustomerName,
		&tx.PartnerID,
		&tx.Status,
		&tx.FailureReason,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
