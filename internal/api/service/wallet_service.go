package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/loanspur/paymentvalut-sub005/internal/domain/wallet"
)

// WalletServiceImpl implements the WalletService interface
type WalletServiceImpl struct {
	wallets wallet.Repository
}

// NewWalletService creates a new wallet service
func NewWalletService(wallets wallet.Repository) WalletService {
	return &WalletServiceImpl{
		wallets: wallets,
	}
}

// GetWallet retrieves the partner's wallet, creating it on first use
func (s *WalletServiceImpl) GetWallet(ctx context.Context, partnerID uuid.UUID) (*wallet.Wallet, error) {
	return s.wallets.GetByPartnerID(ctx, partnerID)
}

// ListTransactions retrieves the paginated ledger history for a wallet
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, partnerID uuid.UUID, page, perPage int) ([]*wallet.Transaction, int64, error) {
	offset := (page - 1) * perPage

	transactions, err := s.wallets.ListTransactions(ctx, partnerID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.wallets.CountTransactions(ctx, partnerID)
	if err != nil {
		return nil, 0, err
	}

	return transactions, total, nil
}
