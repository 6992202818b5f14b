package wallet

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Transaction types
const (
	TypeCredit = "credit"
	TypeDebit  = "debit"
)

var (
	ErrInvalidAmount      = errors.New("transaction amount must be positive")
	ErrInsufficientFunds  = errors.New("insufficient wallet balance")
	ErrInvalidType        = errors.New("transaction type must be credit or debit")
	ErrMissingReference   = errors.New("transaction reference is required")
)

// Wallet is a partner's money account. Balance is kept in minor currency
// units and only moves through ledger entries.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	PartnerID uuid.UUID `json:"partner_id"`
	Balance   int64     `json:"balance"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction is a single ledger entry against a partner wallet. The
// (Reference, Type) pair is unique, which makes replayed postings no-ops.
type Transaction struct {
	ID           int64     `json:"id"`
	PartnerID    uuid.UUID `json:"partner_id"`
	Type         string    `json:"type"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	Reference    string    `json:"reference"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewTransaction validates and builds a ledger entry ready for posting.
func NewTransaction(partnerID uuid.UUID, txType string, amount int64, reference, description string) (*Transaction, error) {
	if txType != TypeCredit && txType != TypeDebit {
		return nil, ErrInvalidType
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if reference == "" {
		return nil, ErrMissingReference
	}
	return &Transaction{
		PartnerID:   partnerID,
		Type:        txType,
		Amount:      amount,
		Reference:   reference,
		Description: description,
	}, nil
}
