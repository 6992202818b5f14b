package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/loanspur/paymentvalut-sub005/internal/domain/c2b"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/partner"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/wallet"
)

// C2BServiceImpl implements the C2BService interface
type C2BServiceImpl struct {
	txRunner     TxRunner
	transactions c2b.Repository
	partners     partner.Repository
	wallets      wallet.Repository
	logger       *slog.Logger
}

// NewC2BService creates a new inbound transaction service
func NewC2BService(
	logger *slog.Logger,
	txRunner TxRunner,
	transactions c2b.Repository,
	partners partner.Repository,
	wallets wallet.Repository,
) C2BService {
	return &C2BServiceImpl{
		txRunner:     txRunner,
		transactions: transactions,
		partners:     partners,
		wallets:      wallets,
		logger:       logger,
	}
}

// List retrieves inbound transactions with optional status filter
func (s *C2BServiceImpl) List(ctx context.Context, status string, page, perPage int) ([]*c2b.Transaction, int64, error) {
	offset := (page - 1) * perPage

	transactions, err := s.transactions.List(ctx, status, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.transactions.Count(ctx, status)
	if err != nil {
		return nil, 0, err
	}

	return transactions, total, nil
}

// Allocate assigns an unmatched inbound transaction to a partner and credits
// the partner wallet. The status flip and the credit happen in one database
// transaction, and the credit reuses the (reference, type) idempotency
// constraint, so a double allocation cannot double credit.
func (s *C2BServiceImpl) Allocate(ctx context.Context, id, partnerID uuid.UUID) (*c2b.Transaction, error) {
	p, err := s.partners.GetByID(ctx, partnerID)
	if err != nil {
		return nil, err
	}

	trx, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if trx.Status != c2b.StatusUnmatched {
		return nil, ErrNotUnmatched
	}

	credit, err := wallet.NewTransaction(p.ID, wallet.TypeCredit, trx.Amount, trx.TransactionID,
		"paybill payment from "+trx.Msisdn+" allocated to "+p.Name)
	if err != nil {
		return nil, err
	}

	err = s.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		applied, err := s.transactions.WithTx(tx).Allocate(ctx, id, p.ID)
		if err != nil {
			return err
		}
		if !applied {
			return ErrNotUnmatched
		}
		if err := s.wallets.WithTx(tx).Credit(ctx, credit); err != nil {
			return fmt.Errorf("failed to credit wallet for allocation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Unmatched inbound transaction allocated",
		"inbound_transaction_id", trx.TransactionID,
		"partner_id", p.ID.String(),
		"amount", trx.Amount,
	)

	return s.transactions.GetByID(ctx, id)
}
