// Package postgres provides PostgreSQL implementations of the domain repositories.
// It handles all database operations while maintaining transaction safety and
// proper error handling for the payment reconciliation system.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/disbursement"
	"github.com/loanspur/paymentvalut-sub005/internal/platform/persistence"
)

const disbursementColumns = `
	id, partner_id, client_request_id, msisdn, amount, currency, status,
	conversation_id, originator_conversation_id, transaction_id,
	result_code, result_desc, receipt_number, settled_amount, settlement_date,
	working_balance, utility_balance, charges_balance,
	retry_count, max_retries, next_retry_at, needs_review, created_at, updated_at
`

// DisbursementRepository implements the disbursement.Repository interface for PostgreSQL
type DisbursementRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewDisbursementRepository creates a new PostgreSQL disbursement repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewDisbursementRepository(logger *slog.Logger, db *persistence.PostgresDB) disbursement.Repository {
	return &DisbursementRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic operations
// across multiple repository calls.
func (r *DisbursementRepository) WithTx(tx pgx.Tx) disbursement.Repository {
	return &DisbursementRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new disbursement request. A repeated (partner_id,
// client_request_id) pair returns ErrDuplicateClientRequestID so callers can
// fall back to the existing request.
func (r *DisbursementRepository) Create(ctx context.Context, req *disbursement.Request) error {
	query := `
		INSERT INTO disbursement_requests (
			id, partner_id, client_request_id, msisdn, amount, currency, status,
			retry_count, max_retries, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.querier.Exec(ctx, query,
		req.ID,
		req.PartnerID,
		req.ClientRequestID,
		req.Msisdn,
		req.Amount,
		req.Currency,
		req.Status,
		req.RetryCount,
		req.MaxRetries,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return disbursement.ErrDuplicateClientRequestID{ClientRequestID: req.ClientRequestID}
		}
		r.logger.Error("Failed to create disbursement request", "error", err)
		return fmt.Errorf("failed to create disbursement request: %w", err)
	}

	return nil
}

// GetByID retrieves a disbursement request by its ID
func (r *DisbursementRepository) GetByID(ctx context.Context, id uuid.UUID) (*disbursement.Request, error) {
	query := `
		SELECT ` + disbursementColumns + `
		FROM disbursement_requests
		WHERE id = $1
	`

	req, err := r.scanRow(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, disbursement.ErrRequestNotFound{ID: id}
		}
		r.logger.Error("Failed to get disbursement request", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get disbursement request: %w", err)
	}

	return req, nil
}

// GetByClientRequestID retrieves a request by the partner's idempotency key
func (r *DisbursementRepository) GetByClientRequestID(ctx context.Context, partnerID uuid.UUID, clientRequestID string) (*disbursement.Request, error) {
	query := `
		SELECT ` + disbursementColumns + `
		FROM disbursement_requests
		WHERE partner_id = $1 AND client_request_id = $2
	`

	req, err := r.scanRow(r.querier.QueryRow(ctx, query, partnerID, clientRequestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Return nil, nil when no request exists for the key
		}
		r.logger.Error("Failed to get disbursement request by client request ID",
			"client_request_id", clientRequestID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to get disbursement request by client request ID: %w", err)
	}

	return req, nil
}

// GetByConversationID retrieves a request by the gateway conversation ID
func (r *DisbursementRepository) GetByConversationID(ctx context.Context, conversationID string) (*disbursement.Request, error) {
	return r.getByGatewayID(ctx, "conversation_id", conversationID)
}

// GetByOriginatorConversationID retrieves a request by the originator conversation ID
func (r *DisbursementRepository) GetByOriginatorConversationID(ctx context.Context, originatorID string) (*disbursement.Request, error) {
	return r.getByGatewayID(ctx, "originator_conversation_id", originatorID)
}

func (r *DisbursementRepository) getByGatewayID(ctx context.Context, column, value string) (*disbursement.Request, error) {
	query := `
		SELECT ` + disbursementColumns + `
		FROM disbursement_requests
		WHERE ` + column + ` = $1
	`

	req, err := r.scanRow(r.querier.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Absence is a matching outcome, not an error
		}
		r.logger.Error("Failed to get disbursement request by gateway ID",
			"column", column,
			"value", value,
			"error", err,
		)
		return nil, fmt.Errorf("failed to get disbursement request by %s: %w", column, err)
	}

	return req, nil
}

// ListByPartner retrieves a page of a partner's requests, newest first.
// An empty status matches all statuses.
func (r *DisbursementRepository) ListByPartner(ctx context.Context, partnerID uuid.UUID, status string, limit, offset int) ([]*disbursement.Request, error) {
	query := `
		SELECT ` + disbursementColumns + `
		FROM disbursement_requests
		WHERE partner_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.querier.Query(ctx, query, partnerID, status, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list disbursement requests", "partner_id", partnerID.String(), "error", err)
		return nil, fmt.Errorf("failed to list disbursement requests: %w", err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// CountByPartner counts a partner's requests for pagination
func (r *DisbursementRepository) CountByPartner(ctx context.Context, partnerID uuid.UUID, status string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM disbursement_requests
		WHERE partner_id = $1 AND ($2 = '' OR status = $2)
	`

	var count int64
	if err := r.querier.QueryRow(ctx, query, partnerID, status).Scan(&count); err != nil {
		r.logger.Error("Failed to count disbursement requests", "partner_id", partnerID.String(), "error", err)
		return 0, fmt.Errorf("failed to count disbursement requests: %w", err)
	}

	return count, nil
}

// MarkSubmitted transitions a request to submitted with the gateway's
// conversation identifiers. The update is conditional on the row still being
// non-terminal so a late transition cannot overwrite a final state.
func (r *DisbursementRepository) MarkSubmitted(ctx context.Context, id uuid.UUID, conversationID, originatorID string) (bool, error) {
	query := `
		UPDATE disbursement_requests
		SET status = $1, conversation_id = $2, originator_conversation_id = $3, updated_at = NOW()
		WHERE id = $4 AND status = ANY($5)
	`

	result, err := r.querier.Exec(ctx, query,
		disbursement.StatusSubmitted,
		conversationID,
		originatorID,
		id,
		disbursement.NonTerminalStatuses,
	)
	if err != nil {
		r.logger.Error("Failed to mark disbursement request submitted", "id", id.String(), "error", err)
		return false, fmt.Errorf("failed to mark disbursement request submitted: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// MarkFailed applies a permanent terminal failure
func (r *DisbursementRepository) MarkFailed(ctx context.Context, id uuid.UUID, resultCode, resultDesc string) (bool, error) {
	query := `
		UPDATE disbursement_requests
		SET status = $1, result_code = $2, result_desc = $3, next_retry_at = NULL, updated_at = NOW()
		WHERE id = $4 AND status = ANY($5)
	`

	result, err := r.querier.Exec(ctx, query,
		disbursement.StatusFailed,
		resultCode,
		resultDesc,
		id,
		disbursement.NonTerminalStatuses,
	)
	if err != nil {
		r.logger.Error("Failed to mark disbursement request failed", "id", id.String(), "error", err)
		return false, fmt.Errorf("failed to mark disbursement request failed: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// MarkPendingRetry records a transient failure and schedules the next attempt
func (r *DisbursementRepository) MarkPendingRetry(ctx context.Context, id uuid.UUID, resultCode, resultDesc string, nextRetryAt time.Time) (bool, error) {
	query := `
		UPDATE disbursement_requests
		SET status = $1, result_code = $2, result_desc = $3, next_retry_at = $4, updated_at = NOW()
		WHERE id = $5 AND status = ANY($6)
	`

	result, err := r.querier.Exec(ctx, query,
		disbursement.StatusPending,
		resultCode,
		resultDesc,
		nextRetryAt,
		id,
		disbursement.NonTerminalStatuses,
	)
	if err != nil {
		r.logger.Error("Failed to mark disbursement request pending retry", "id", id.String(), "error", err)
		return false, fmt.Errorf("failed to mark disbursement request pending retry: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// FinalizeSuccess applies the terminal success transition with the settlement
// details from the result callback
func (r *DisbursementRepository) FinalizeSuccess(ctx context.Context, id uuid.UUID, res *disbursement.FinalResult) (bool, error) {
	query := `
		UPDATE disbursement_requests
		SET status = $1, result_code = $2, result_desc = $3, transaction_id = $4,
			receipt_number = $5, settled_amount = $6, settlement_date = $7,
			working_balance = $8, utility_balance = $9, charges_balance = $10,
			next_retry_at = NULL, updated_at = NOW()
		WHERE id = $11 AND status = ANY($12)
	`

	result, err := r.querier.Exec(ctx, query,
		disbursement.StatusSuccess,
		res.ResultCode,
		res.ResultDesc,
		res.TransactionID,
		res.ReceiptNumber,
		res.SettledAmount,
		res.SettlementDate,
		res.WorkingBalance,
		res.UtilityBalance,
		res.ChargesBalance,
		id,
		disbursement.NonTerminalStatuses,
	)
	if err != nil {
		r.logger.Error("Failed to finalize disbursement request", "id", id.String(), "error", err)
		return false, fmt.Errorf("failed to finalize disbursement request: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// RecordProcessing stores a "still processing" result without leaving the
// pending state
func (r *DisbursementRepository) RecordProcessing(ctx context.Context, id uuid.UUID, resultCode, resultDesc string) (bool, error) {
	query := `
		UPDATE disbursement_requests
		SET status = $1, result_code = $2, result_desc = $3, updated_at = NOW()
		WHERE id = $4 AND status = ANY($5)
	`

	result, err := r.querier.Exec(ctx, query,
		disbursement.StatusPending,
		resultCode,
		resultDesc,
		id,
		disbursement.NonTerminalStatuses,
	)
	if err != nil {
		r.logger.Error("Failed to record processing result", "id", id.String(), "error", err)
		return false, fmt.Errorf("failed to record processing result: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ClaimRetryable atomically selects retry-eligible requests and advances their
// retry bookkeeping in one statement. FOR UPDATE SKIP LOCKED keeps concurrent
// scheduler instances from claiming the same rows, and the pre-advanced
// next_retry_at keeps a row out of later scans even if the resubmission fails.
func (r *DisbursementRepository) ClaimRetryable(ctx context.Context, now time.Time, limit int, baseDelay, maxDelay time.Duration, transientCodes []string) ([]*disbursement.Request, error) {
	query := `
		WITH eligible AS (
			SELECT id
			FROM disbursement_requests
			WHERE status = ANY($1)
			  AND retry_count < max_retries
			  AND next_retry_at IS NOT NULL
			  AND next_retry_at <= $2
			  AND COALESCE(result_code, '') = ANY($3)
			ORDER BY next_retry_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		UPDATE disbursement_requests d
		SET retry_count = d.retry_count + 1,
			next_retry_at = $2 + LEAST($5 * POWER(2, d.retry_count), $6) * INTERVAL '1 second',
			updated_at = NOW()
		FROM eligible e
		WHERE d.id = e.id
		RETURNING
			d.id, d.partner_id, d.client_request_id, d.msisdn, d.amount, d.currency, d.status,
			d.conversation_id, d.originator_conversation_id, d.transaction_id,
			d.result_code, d.result_desc, d.receipt_number, d.settled_amount, d.settlement_date,
			d.working_balance, d.utility_balance, d.charges_balance,
			d.retry_count, d.max_retries, d.next_retry_at, d.needs_review, d.created_at, d.updated_at
	`

	rows, err := r.querier.Query(ctx, query,
		[]string{string(disbursement.StatusFailed), string(disbursement.StatusPending)},
		now,
		transientCodes,
		limit,
		baseDelay.Seconds(),
		maxDelay.Seconds(),
	)
	if err != nil {
		r.logger.Error("Failed to claim retryable disbursement requests", "error", err)
		return nil, fmt.Errorf("failed to claim retryable disbursement requests: %w", err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// FlagForReview marks an exhausted request for operator attention
func (r *DisbursementRepository) FlagForReview(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE disbursement_requests
		SET needs_review = TRUE, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.querier.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to flag disbursement request for review", "id", id.String(), "error", err)
		return fmt.Errorf("failed to flag disbursement request for review: %w", err)
	}

	if result.RowsAffected() == 0 {
		return disbursement.ErrRequestNotFound{ID: id}
	}

	return nil
}

// AppendRetryLog records one retry attempt outcome
func (r *DisbursementRepository) AppendRetryLog(ctx context.Context, entry *disbursement.RetryLogEntry) error {
	query := `
		INSERT INTO disbursement_retry_log (disbursement_id, attempt, outcome, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		entry.DisbursementID,
		entry.Attempt,
		entry.Outcome,
		entry.Reason,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		r.logger.Error("Failed to append retry log entry",
			"disbursement_id", entry.DisbursementID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to append retry log entry: %w", err)
	}

	return nil
}

// ListRetryLog retrieves the retry history of a request in attempt order
func (r *DisbursementRepository) ListRetryLog(ctx context.Context, disbursementID uuid.UUID) ([]*disbursement.RetryLogEntry, error) {
	query := `
		SELECT id, disbursement_id, attempt, outcome, reason, created_at
		FROM disbursement_retry_log
		WHERE disbursement_id = $1
		ORDER BY attempt ASC
	`

	rows, err := r.querier.Query(ctx, query, disbursementID)
	if err != nil {
		r.logger.Error("Failed to list retry log", "disbursement_id", disbursementID.String(), "error", err)
		return nil, fmt.Errorf("failed to list retry log: %w", err)
	}
	defer rows.Close()

	var entries []*disbursement.RetryLogEntry
	for rows.Next() {
		var entry disbursement.RetryLogEntry
		err := rows.Scan(
			&entry.ID,
			&entry.DisbursementID,
			&entry.Attempt,
			&entry.Outcome,
			&entry.Reason,
			&entry.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan retry log entry", "error", err)
			return nil, fmt.Errorf("failed to scan retry log entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over retry log entries", "error", err)
		return nil, fmt.Errorf("error iterating over retry log entries: %w", err)
	}

	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *DisbursementRepository) scanRow(row rowScanner) (*disbursement.Request, error) {
	var req disbursement.Request
	err := row.Scan(
		&req.ID,
		&req.PartnerID,
		&req.ClientRequestID,
		&req.Msisdn,
		&req.Amount,
		&req.Currency,
		&req.Status,
		&req.ConversationID,
		&req.OriginatorConversationID,
		&req.TransactionID,
		&req.ResultCode,
		&req.ResultDesc,
		&req.ReceiptNumber,
		&req.SettledAmount,
		&req.SettlementDate,
		&req.WorkingBalance,
		&req.UtilityBalance,
		&req.ChargesBalance,
		&req.RetryCount,
		&req.MaxRetries,
		&req.NextRetryAt,
		&req.NeedsReview,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *DisbursementRepository) scanRows(rows pgx.Rows) ([]*disbursement.Request, error) {
	var requests []*disbursement.Request
	for rows.Next() {
		req, err := r.scanRow(rows)
		if err != nil {
			r.logger.Error("Failed to scan disbursement request", "error", err)
			return nil, fmt.Errorf("failed to scan disbursement request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over disbursement requests", "error", err)
		return nil, fmt.Errorf("error iterating over disbursement requests: %w", err)
	}

	return requests, nil
}
