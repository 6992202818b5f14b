package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/wallet"
	"github.com/loanspur/paymentvalut-sub005/internal/platform/persistence"
)

// WalletRepository implements the wallet.Repository interface for PostgreSQL
type WalletRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewWalletRepository creates a new PostgreSQL wallet repository
func NewWalletRepository(logger *slog.Logger, db *persistence.PostgresDB) wallet.Repository {
	return &WalletRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so a ledger posting and the
// owning state transition commit or roll back together.
func (r *WalletRepository) WithTx(tx pgx.Tx) wallet.Repository {
	return &WalletRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetByPartnerID returns the partner's wallet, creating a zero-balance wallet
// on first use
func (r *WalletRepository) GetByPartnerID(ctx context.Context, partnerID uuid.UUID) (*wallet.Wallet, error) {
	query := `
		INSERT INTO partner_wallets (id, partner_id, balance, currency, created_at, updated_at)
		VALUES ($1, $2, 0, 'KES', NOW(), NOW())
		ON CONFLICT (partner_id) DO UPDATE SET partner_id = EXCLUDED.partner_id
		RETURNING id, partner_id, balance, currency, created_at, updated_at
	`

	var w wallet.Wallet
	err := r.querier.QueryRow(ctx, query, uuid.New(), partnerID).Scan(
		&w.ID,
		&w.PartnerID,
		&w.Balance,
		&w.Currency,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to get wallet", "partner_id", partnerID.String(), "error", err)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &w, nil
}

// Credit posts a credit entry and increases the wallet balance
func (r *WalletRepository) Credit(ctx context.Context, tx *wallet.Transaction) error {
	return r.post(ctx, tx, wallet.TypeCredit)
}

// Debit posts a debit entry and decreases the wallet balance
func (r *WalletRepository) Debit(ctx context.Context, tx *wallet.Transaction) error {
	return r.post(ctx, tx, wallet.TypeDebit)
}

// post applies one ledger entry and the matching balance move. The wallet
// row is upserted first so a partner's very first posting cannot fall through
// the balance-move CTE; after that, zero inserted rows can only mean the
// unique (reference, type) index rejected a replay, surfaced as
// ErrDuplicateEntry.
func (r *WalletRepository) post(ctx context.Context, tx *wallet.Transaction, txType string) error {
	if tx.Type != txType {
		return wallet.ErrInvalidType
	}

	delta := tx.Amount
	if txType == wallet.TypeDebit {
		delta = -tx.Amount
	}

	ensure := `
		INSERT INTO partner_wallets (id, partner_id, balance, currency, created_at, updated_at)
		VALUES ($1, $2, 0, 'KES', NOW(), NOW())
		ON CONFLICT (partner_id) DO NOTHING
	`

	if _, err := r.querier.Exec(ctx, ensure, uuid.New(), tx.PartnerID); err != nil {
		r.logger.Error("Failed to ensure wallet row",
			"partner_id", tx.PartnerID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to ensure wallet row: %w", err)
	}

	query := `
		WITH moved AS (
			UPDATE partner_wallets
			SET balance = balance + $1, updated_at = NOW()
			WHERE partner_id = $2
			RETURNING balance
		)
		INSERT INTO wallet_transactions (partner_id, type, amount, balance_after, reference, description, created_at)
		SELECT $2, $3, $4, moved.balance, $5, $6, NOW()
		FROM moved
		ON CONFLICT (reference, type) DO NOTHING
		RETURNING id, balance_after, created_at
	`

	err := r.querier.QueryRow(ctx, query,
		delta,
		tx.PartnerID,
		tx.Type,
		tx.Amount,
		tx.Reference,
		tx.Description,
	).Scan(&tx.ID, &tx.BalanceAfter, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// ON CONFLICT DO NOTHING returns no row on replay. The caller
			// must run inside a transaction so the balance move above is
			// rolled back with it.
			return wallet.ErrDuplicateEntry{Reference: tx.Reference, Type: tx.Type}
		}
		r.logger.Error("Failed to post wallet transaction",
			"partner_id", tx.PartnerID.String(),
			"type", tx.Type,
			"reference", tx.Reference,
			"error", err,
		)
		return fmt.Errorf("failed to post wallet transaction: %w", err)
	}

	return nil
}

// ListTransactions retrieves a page of a partner's ledger entries, newest first
func (r *WalletRepository) ListTransactions(ctx context.Context, partnerID uuid.UUID, limit, offset int) ([]*wallet.Transaction, error) {
	query := `
		SELECT id, partner_id, type, amount, balance_after, reference, description, created_at
		FROM wallet_transactions
		WHERE partner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, partnerID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list wallet transactions", "partner_id", partnerID.String(), "error", err)
		return nil, fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*wallet.Transaction
	for rows.Next() {
		var tx wallet.Transaction
		err := rows.Scan(
			&tx.ID,
			&tx.PartnerID,
			&tx.Type,
			&tx.Amount,
			&tx.BalanceAfter,
			&tx.Reference,
			&tx.Description,
			&tx.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan wallet transaction", "error", err)
			return nil, fmt.Errorf("failed to scan wallet transaction: %w", err)
		}
		transactions = append(transactions, &tx)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over wallet transactions", "error", err)
		return nil, fmt.Errorf("error iterating over wallet transactions: %w", err)
	}

	return transactions, nil
}

// CountTransactions counts a partner's ledger entries for pagination
func (r *WalletRepository) CountTransactions(ctx context.Context, partnerID uuid.UUID) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM wallet_transactions
		WHERE partner_id = $1
	`

	var count int64
	if err := r.querier.QueryRow(ctx, query, partnerID).Scan(&count); err != nil {
		r.logger.Error("Failed to count wallet transactions", "partner_id", partnerID.String(), "error", err)
		return 0, fmt.Errorf("failed to count wallet transactions: %w", err)
	}

	return count, nil
}
