package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loanspur/paymentvalut-sub005/internal/domain/balance"
)

// BalanceServiceImpl implements the BalanceService interface
type BalanceServiceImpl struct {
	balances balance.Repository
	gateway  Gateway
	logger   *slog.Logger
}

// NewBalanceService creates a new balance service
func NewBalanceService(logger *slog.Logger, balances balance.Repository, gateway Gateway) BalanceService {
	return &BalanceServiceImpl{
		balances: balances,
		gateway:  gateway,
		logger:   logger,
	}
}

// Trigger records the balance check intent, then asks the gateway. The row
// exists before the gateway is called so even an immediate result callback
// finds something to match. This is an operator action, so gateway trouble
// surfaces directly instead of being absorbed into retry state.
func (s *BalanceServiceImpl) Trigger(ctx context.Context) (*balance.Request, error) {
	now := time.Now()
	req := &balance.Request{
		ID:        uuid.New(),
		Status:    balance.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.balances.Create(ctx, req); err != nil {
		return nil, err
	}

	resp, err := s.gateway.QueryAccountBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query account balance: %w", err)
	}
	if !resp.Accepted() {
		return nil, fmt.Errorf("gateway rejected balance query: %s (%s)", resp.Description(), resp.Code())
	}

	if err := s.balances.SetConversationIDs(ctx, req.ID, resp.ConversationID, resp.OriginatorConversationID); err != nil {
		return nil, err
	}
	req.ConversationID = resp.ConversationID
	req.OriginatorConversationID = resp.OriginatorConversationID

	s.logger.Info("Balance check triggered",
		"balance_request_id", req.ID.String(),
		"conversation_id", req.ConversationID,
	)
	return req, nil
}

// List retrieves recent balance check requests, newest first
func (s *BalanceServiceImpl) List(ctx context.Context, page, perPage int) ([]*balance.Request, error) {
	offset := (page - 1) * perPage
	return s.balances.List(ctx, perPage, offset)
}
