package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/loanspur/paymentvalut-sub005/internal/domain/balance"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/c2b"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/disbursement"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/wallet"
	"github.com/loanspur/paymentvalut-sub005/internal/mpesa"
)

// Service-level errors
var (
	// ErrNotRetryable means the request already reached a terminal state
	ErrNotRetryable = errors.New("request is terminal and cannot be retried")
	// ErrNotUnmatched means the inbound transaction was already allocated
	ErrNotUnmatched = errors.New("inbound transaction is not unmatched")
)

// Gateway is the outbound mobile money gateway surface the services need
type Gateway interface {
	SendB2C(ctx context.Context, msisdn string, amount int64, remarks, occasion string) (*mpesa.GatewayResponse, error)
	QueryAccountBalance(ctx context.Context) (*mpesa.GatewayResponse, error)
}

// RetrySubmitter re-submits a single claimed request to the gateway
type RetrySubmitter interface {
	RetryOne(ctx context.Context, req *disbursement.Request)
}

// TxRunner executes a function inside a database transaction
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// DisbursementService defines the interface for disbursement operations
type DisbursementService interface {
	// Submit creates and submits a disbursement request. Resubmission with
	// the same client request id returns the existing request; the second
	// return value reports whether a new request was created.
	Submit(ctx context.Context, partnerID uuid.UUID, clientRequestID, msisdn string, amount int64, currency string) (*disbursement.Request, bool, error)

	// GetByID retrieves a request scoped to the owning partner.
	// Returns ErrRequestNotFound for missing or foreign requests.
	GetByID(ctx context.Context, partnerID, id uuid.UUID) (*disbursement.Request, error)

	// List retrieves a partner's requests with optional status filter.
	// Returns requests, total count, and any error.
	List(ctx context.Context, partnerID uuid.UUID, status string, page, perPage int) ([]*disbursement.Request, int64, error)

	// RetryLog retrieves the append-only retry history for a request
	RetryLog(ctx context.Context, partnerID, id uuid.UUID) ([]*disbursement.RetryLogEntry, error)

	// Retry re-submits a non-terminal request immediately instead of
	// waiting for the next scheduler scan. Returns the refreshed request.
	Retry(ctx context.Context, partnerID, id uuid.UUID) (*disbursement.Request, error)
}

// WalletService defines the interface for wallet queries
type WalletService interface {
	// GetWallet retrieves the partner's wallet, creating it on first use
	GetWallet(ctx context.Context, partnerID uuid.UUID) (*wallet.Wallet, error)

	// ListTransactions retrieves the paginated ledger history for a wallet.
	// Returns transactions, total count, and any error.
	ListTransactions(ctx context.Context, partnerID uuid.UUID, page, perPage int) ([]*wallet.Transaction, int64, error)
}

// BalanceService defines the interface for gateway balance check intents
type BalanceService interface {
	// Trigger asks the gateway for the account balance and records the
	// intent; the balances arrive later through the result callback.
	Trigger(ctx context.Context) (*balance.Request, error)

	// List retrieves recent balance check requests, newest first
	List(ctx context.Context, page, perPage int) ([]*balance.Request, error)
}

// C2BService defines the interface for inbound transaction operations
type C2BService interface {
	// List retrieves inbound transactions with optional status filter
	List(ctx context.Context, status string, page, perPage int) ([]*c2b.Transaction, int64, error)

	// Allocate assigns an unmatched inbound transaction to a partner and
	// credits the partner wallet in the same database transaction
	Allocate(ctx context.Context, id, partnerID uuid.UUID) (*c2b.Transaction, error)
}
