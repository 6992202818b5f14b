package inbound

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/loanspur/paymentvalut-sub005/internal/config"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/c2b"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/partner"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/wallet"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type fakeTxRunner struct{}

func (f *fakeTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type MockC2BRepo struct {
	mock.Mock
}

func (m *MockC2BRepo) Create(ctx context.Context, tx *c2b.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockC2BRepo) GetByID(ctx context.Context, id uuid.UUID) (*c2b.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*c2b.Transaction), args.Error(1)
}

func (m *MockC2BRepo) GetByTransactionID(ctx context.Context, transactionID string) (*c2b.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*c2b.Transaction), args.Error(1)
}

func (m *MockC2BRepo) Allocate(ctx context.Context, id uuid.UUID, partnerID uuid.UUID) (bool, error) {
	args := m.Called(ctx, id, partnerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockC2BRepo) List(ctx context.Context, status string, limit, offset int) ([]*c2b.Transaction, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*c2b.Transaction), args.Error(1)
}

func (m *MockC2BRepo) Count(ctx context.Context, status string) (int64, error) {
	args := m.Called(ctx, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockC2BRepo) WithTx(tx pgx.Tx) c2b.Repository {
	m.Called(tx)
	return m
}

type MockPartnerRepo struct {
	mock.Mock
}

func (m *MockPartnerRepo) GetByID(ctx context.Context, id uuid.UUID) (*partner.Partner, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Partner), args.Error(1)
}

func (m *MockPartnerRepo) GetByAPIKeyHash(ctx context.Context, hash string) (*partner.Partner, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Partner), args.Error(1)
}

func (m *MockPartnerRepo) GetByShortCode(ctx context.Context, shortCode string) (*partner.Partner, error) {
	args := m.Called(ctx, shortCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Partner), args.Error(1)
}

type MockWalletRepo struct {
	mock.Mock
}

func (m *MockWalletRepo) GetByPartnerID(ctx context.Context, partnerID uuid.UUID) (*wallet.Wallet, error) {
	args := m.Called(ctx, partnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *MockWalletRepo) Credit(ctx context.Context, tx *wallet.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockWalletRepo) Debit(ctx context.Context, tx *wallet.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockWalletRepo) ListTransactions(ctx context.Context, partnerID uuid.UUID, limit, offset int) ([]*wallet.Transaction, error) {
	args := m.Called(ctx, partnerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*wallet.Transaction), args.Error(1)
}

func (m *MockWalletRepo) CountTransactions(ctx context.Context, partnerID uuid.UUID) (int64, error) {
	args := m.Called(ctx, partnerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWalletRepo) WithTx(tx pgx.Tx) wallet.Repository {
	m.Called(tx)
	return m
}

func paybillConfig() *config.PaybillConfig {
	return &config.PaybillConfig{
		ShortCode:     "600986",
		Username:      "notify-user",
		Password:      "notify-pass",
		SecretKey:     "shared-secret",
		AccountNumber: "774451",
		Separator:     "#",
	}
}

type processorFixture struct {
	processor    *Processor
	transactions *MockC2BRepo
	partners     *MockPartnerRepo
	wallets      *MockWalletRepo
}

func newProcessorFixture() *processorFixture {
	f := &processorFixture{
		transactions: new(MockC2BRepo),
		partners:     new(MockPartnerRepo),
		wallets:      new(MockWalletRepo),
	}
	f.processor = NewProcessor(&fakeTxRunner{}, f.transactions, f.partners, f.wallets, paybillConfig(), newTestLogger())
	return f
}

// signedNotification builds a notification with a valid hash
func signedNotification() *Notification {
	n := &Notification{
		TransType:         "Pay Bill",
		TransID:           "QGR7RCTRXN",
		TransTime:         "20260829104512",
		TransAmount:       "2500.00",
		BusinessShortCode: "600986",
		BillRefNumber:     "774451#lender-01",
		Mobile:            "254712345678",
		Name:              "JOHN DOE",
		Username:          "notify-user",
		Password:          "notify-pass",
	}
	n.Hash = ComputeHash("shared-secret", n)
	return n
}

func TestProcessor_Process_CreditsWallet(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture()
	n := signedNotification()

	pt := &partner.Partner{ID: uuid.New(), Name: "Lender One", ShortCode: "lender-01", IsActive: true}

	f.transactions.On("GetByTransactionID", ctx, "QGR7RCTRXN").Return(nil, nil).Once()
	f.partners.On("GetByShortCode", ctx, "lender-01").Return(pt, nil).Once()
	f.transactions.On("WithTx", nil).Return().Once()
	f.transactions.On("Create", ctx, mock.MatchedBy(func(tx *c2b.Transaction) bool {
		return tx.TransactionID == "QGR7RCTRXN" &&
			tx.Status == c2b.StatusCompleted &&
			tx.Amount == 250000 &&
			tx.AccountNumber == "774451" &&
			tx.PartnerID != nil && *tx.PartnerID == pt.ID
	})).Return(nil).Once()
	f.wallets.On("WithTx", nil).Return().Once()
	f.wallets.On("Credit", ctx, mock.MatchedBy(func(tx *wallet.Transaction) bool {
		return tx.PartnerID == pt.ID &&
			tx.Type == wallet.TypeCredit &&
			tx.Amount == 250000 &&
			tx.Reference == "QGR7RCTRXN"
	})).Return(nil).Once()

	ack := f.processor.Process(ctx, n)
	assert.Equal(t, AckAccepted, ack.ResultCode)
	f.transactions.AssertExpectations(t)
	f.wallets.AssertExpectations(t)
}

func TestProcessor_Process_RejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture()
	n := signedNotification()
	n.Password = "wrong"

	ack := f.processor.Process(ctx, n)
	assert.Equal(t, AckRejected, ack.ResultCode)

	// Nothing is stored for unauthenticated notifications
	f.transactions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProcessor_Process_RejectsWrongShortCode(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture()
	n := signedNotification()
	n.BusinessShortCode = "111111"
	n.Hash = ComputeHash("shared-secret", n)

	ack := f.processor.Process(ctx, n)
	assert.Equal(t, AckRejected, ack.ResultCode)
}

func TestProcessor_Process_RejectsBadHash(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture()
	n := signedNotification()
	n.TransAmount = "9999.00" // Tampered after signing

	ack := f.processor.Process(ctx, n)
	assert.Equal(t, AckRejected, ack.ResultCode)
	f.transactions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProcessor_Process_DuplicateAcknowledged(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture()
	n := signedNotification()

	f.transactions.On("GetByTransactionID", ctx, "QGR7RCTRXN").
		Return(&c2b.Transaction{TransactionID: "QGR7RCTRXN", Status: c2b.StatusCompleted}, nil).Once()

	ack := f.processor.Process(ctx, n)
	assert.Equal(t, AckAccepted, ack.ResultCode)

	// No second credit
	f.wallets.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything)
}

func TestProcessor_Process_UnknownTokenStoredUnmatched(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture()
	n := signedNotification()

	f.transactions.On("GetByTransactionID", ctx, "QGR7RCTRXN").Return(nil, nil).Once()
	f.partners.On("GetByShortCode", ctx, "lender-01").
		Return(nil, partner.ErrPartnerNotFound{Key: "lender-01"}).Once()
	f.transactions.On("Create", ctx, mock.MatchedBy(func(tx *c2b.Transaction) bool {
		return tx.Status == c2b.StatusUnmatched && tx.PartnerID == nil
	})).Return(nil).Once()

	ack := f.processor.Process(ctx, n)
	assert.Equal(t, AckAccepted, ack.ResultCode)
	f.transactions.AssertExpectations(t)
	f.wallets.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything)
}

func TestProcessor_Process_BadAccountReferenceStoredUnmatched(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture()
	n := signedNotification()
	n.BillRefNumber = "999999#lender-01"
	n.Hash = ComputeHash("shared-secret", n)

	f.transactions.On("GetByTransactionID", ctx, "QGR7RCTRXN").Return(nil, nil).Once()
	f.transactions.On("Create", ctx, mock.MatchedBy(func(tx *c2b.Transaction) bool {
		return tx.Status == c2b.StatusUnmatched
	})).Return(nil).Once()

	ack := f.processor.Process(ctx, n)
	assert.Equal(t, AckAccepted, ack.ResultCode)
	f.transactions.AssertExpectations(t)
}

func TestProcessor_Process_ExtraSeparatorStoredUnmatched(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture()
	n := signedNotification()
	n.BillRefNumber = "774451#UMOJA#X"
	n.Hash = ComputeHash("shared-secret", n)

	f.transactions.On("GetByTransactionID", ctx, "QGR7RCTRXN").Return(nil, nil).Once()
	f.transactions.On("Create", ctx, mock.MatchedBy(func(tx *c2b.Transaction) bool {
		return tx.Status == c2b.StatusUnmatched && tx.PartnerID == nil
	})).Return(nil).Once()

	ack := f.processor.Process(ctx, n)
	assert.Equal(t, AckAccepted, ack.ResultCode)

	// A reference with more than two parts must never reach partner
	// resolution with a token still containing the separator.
	f.partners.AssertNotCalled(t, "GetByShortCode", mock.Anything, "UMOJA#X")
	f.transactions.AssertExpectations(t)
}

func TestProcessor_Process_InvalidAmountStoredRejected(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture()
	n := signedNotification()
	n.TransAmount = "not-a-number"
	n.Hash = ComputeHash("shared-secret", n)

	f.transactions.On("GetByTransactionID", ctx, "QGR7RCTRXN").Return(nil, nil).Once()
	f.transactions.On("Create", ctx, mock.MatchedBy(func(tx *c2b.Transaction) bool {
		return tx.Status == c2b.StatusRejected
	})).Return(nil).Once()

	ack := f.processor.Process(ctx, n)
	assert.Equal(t, AckRejected, ack.ResultCode)
	f.transactions.AssertExpectations(t)
}

func TestProcessor_Process_ConcurrentDuplicateCredit(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture()
	n := signedNotification()

	pt := &partner.Partner{ID: uuid.New(), ShortCode: "lender-01", IsActive: true}

	f.transactions.On("GetByTransactionID", ctx, "QGR7RCTRXN").Return(nil, nil).Once()
	f.partners.On("GetByShortCode", ctx, "lender-01").Return(pt, nil).Once()
	f.transactions.On("WithTx", nil).Return().Once()
	f.transactions.On("Create", ctx, mock.Anything).Return(nil).Once()
	f.wallets.On("WithTx", nil).Return().Once()
	f.wallets.On("Credit", ctx, mock.Anything).
		Return(wallet.ErrDuplicateEntry{Reference: "QGR7RCTRXN", Type: wallet.TypeCredit}).Once()

	ack := f.processor.Process(ctx, n)
	assert.Equal(t, AckAccepted, ack.ResultCode)
}

func TestComputeHash(t *testing.T) {
	n := signedNotification()
	require.NotEmpty(t, n.Hash)

	// Deterministic for the same payload
	assert.Equal(t, n.Hash, ComputeHash("shared-secret", n))

	// Any field change invalidates the hash
	other := *n
	other.TransAmount = "2500.01"
	assert.NotEqual(t, n.Hash, ComputeHash("shared-secret", &other))

	// Different secret produces a different hash
	assert.NotEqual(t, n.Hash, ComputeHash("other-secret", n))
}
