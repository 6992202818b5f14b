package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines wallet and ledger persistence operations.
type Repository interface {
	// GetByPartnerID returns the partner's wallet, creating a zero-balance
	// wallet on first use.
	GetByPartnerID(ctx context.Context, partnerID uuid.UUID) (*Wallet, error)
	// Credit posts a credit entry and increases the wallet balance. A
	// replayed (reference, type) pair returns ErrDuplicateEntry and leaves
	// the balance untouched.
	Credit(ctx context.Context, tx *Transaction) error
	// Debit posts a debit entry and decreases the wallet balance, with the
	// same replay behavior as Credit.
	Debit(ctx context.Context, tx *Transaction) error
	ListTransactions(ctx context.Context, partnerID uuid.UUID, limit, offset int) ([]*Transaction, error)
	CountTransactions(ctx context.Context, partnerID uuid.UUID) (int64, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrWalletNotFound indicates a missing wallet
type ErrWalletNotFound struct {
	PartnerID uuid.UUID
}

func (e ErrWalletNotFound) Error() string {
	return "wallet not found for partner: " + e.PartnerID.String()
}

// ErrDuplicateEntry indicates a ledger entry with this reference and type
// already exists; the original posting stands.
type ErrDuplicateEntry struct {
	Reference string
	Type      string
}

func (e ErrDuplicateEntry) Error() string {
	return "ledger entry already posted: " + e.Type + " " + e.Reference
}
