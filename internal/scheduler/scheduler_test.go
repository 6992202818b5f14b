package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/loanspur/paymentvalut-sub005/internal/config"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/disbursement"
	"github.com/loanspur/paymentvalut-sub005/internal/mpesa"
)

// --- Mocks ---

type MockDisbursementRepo struct {
	mock.Mock
}

func (m *MockDisbursementRepo) Create(ctx context.Context, req *disbursement.Request) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockDisbursementRepo) GetByID(ctx context.Context, id uuid.UUID) (*disbursement.Request, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*disbursement.Request), args.Error(1)
}

func (m *MockDisbursementRepo) GetByClientRequestID(ctx context.Context, partnerID uuid.UUID, clientRequestID string) (*disbursement.Request, error) {
	args := m.Called(ctx, partnerID, clientRequestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*disbursement.Request), args.Error(1)
}

func (m *MockDisbursementRepo) GetByConversationID(ctx context.Context, conversationID string) (*disbursement.Request, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*disbursement.Request), args.Error(1)
}

func (m *MockDisbursementRepo) GetByOriginatorConversationID(ctx context.Context, originatorID string) (*disbursement.Request, error) {
	args := m.Called(ctx, originatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*disbursement.Request), args.Error(1)
}

func (m *MockDisbursementRepo) ListByPartner(ctx context.Context, partnerID uuid.UUID, status string, limit, offset int) ([]*disbursement.Request, error) {
	args := m.Called(ctx, partnerID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*disbursement.Request), args.Error(1)
}

func (m *MockDisbursementRepo) CountByPartner(ctx context.Context, partnerID uuid.UUID, status string) (int64, error) {
	args := m.Called(ctx, partnerID, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDisbursementRepo) MarkSubmitted(ctx context.Context, id uuid.UUID, conversationID, originatorID string) (bool, error) {
	args := m.Called(ctx, id, conversationID, originatorID)
	return args.Bool(0), args.Error(1)
}

func (m *MockDisbursementRepo) MarkFailed(ctx context.Context, id uuid.UUID, resultCode, resultDesc string) (bool, error) {
	args := m.Called(ctx, id, resultCode, resultDesc)
	return args.Bool(0), args.Error(1)
}

func (m *MockDisbursementRepo) MarkPendingRetry(ctx context.Context, id uuid.UUID, resultCode, resultDesc string, nextRetryAt time.Time) (bool, error) {
	args := m.Called(ctx, id, resultCode, resultDesc, nextRetryAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockDisbursementRepo) FinalizeSuccess(ctx context.Context, id uuid.UUID, res *disbursement.FinalResult) (bool, error) {
	args := m.Called(ctx, id, res)
	return args.Bool(0), args.Error(1)
}

func (m *MockDisbursementRepo) RecordProcessing(ctx context.Context, id uuid.UUID, resultCode, resultDesc string) (bool, error) {
	args := m.Called(ctx, id, resultCode, resultDesc)
	return args.Bool(0), args.Error(1)
}

func (m *MockDisbursementRepo) ClaimRetryable(ctx context.Context, now time.Time, limit int, baseDelay, maxDelay time.Duration, transientCodes []string) ([]*disbursement.Request, error) {
	args := m.Called(ctx, now, limit, baseDelay, maxDelay, transientCodes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*disbursement.Request), args.Error(1)
}

func (m *MockDisbursementRepo) FlagForReview(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDisbursementRepo) AppendRetryLog(ctx context.Context, entry *disbursement.RetryLogEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockDisbursementRepo) ListRetryLog(ctx context.Context, disbursementID uuid.UUID) ([]*disbursement.RetryLogEntry, error) {
	args := m.Called(ctx, disbursementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*disbursement.RetryLogEntry), args.Error(1)
}

func (m *MockDisbursementRepo) WithTx(tx pgx.Tx) disbursement.Repository {
	m.Called(tx)
	return m
}

type MockGatewayClient struct {
	mock.Mock
}

func (m *MockGatewayClient) SendB2C(ctx context.Context, msisdn string, amount int64, remarks, occasion string) (*mpesa.GatewayResponse, error) {
	args := m.Called(ctx, msisdn, amount, remarks, occasion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mpesa.GatewayResponse), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

type MockDLQPublisher struct {
	mock.Mock
}

func (m *MockDLQPublisher) PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error {
	return m.Called(ctx, key, originalMessageValue, reason).Error(0)
}

func (m *MockDLQPublisher) Close() error {
	return m.Called().Error(0)
}

// --- Fixtures ---

type schedulerFixture struct {
	repo    *MockDisbursementRepo
	gateway *MockGatewayClient
	events  *MockPublisher
	dlq     *MockDLQPublisher
	sched   *Scheduler
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	dispatcher, err := NewDispatcher(4, logger)
	require.NoError(t, err)
	t.Cleanup(dispatcher.Shutdown)

	f := &schedulerFixture{
		repo:    new(MockDisbursementRepo),
		gateway: new(MockGatewayClient),
		events:  new(MockPublisher),
		dlq:     new(MockDLQPublisher),
	}
	f.sched = NewScheduler(f.repo, f.gateway, dispatcher, f.events, f.dlq, &config.RetryConfig{
		ScanInterval:      time.Minute,
		BaseDelay:         5 * time.Minute,
		MaxDelay:          2 * time.Hour,
		BatchSize:         50,
		DefaultMaxRetries: 3,
	}, logger)
	return f
}

func claimedRequest() *disbursement.Request {
	return &disbursement.Request{
		ID:              uuid.New(),
		PartnerID:       uuid.New(),
		ClientRequestID: "client-req-1",
		Msisdn:          "254712345678",
		Amount:          150000,
		Currency:        "KES",
		Status:          disbursement.StatusPending,
		ResultCode:      disbursement.ResultCodeTimeout,
		RetryCount:      1,
		MaxRetries:      3,
	}
}

// --- Tests ---

func TestRetryOne_AcceptedByGateway(t *testing.T) {
	f := newSchedulerFixture(t)
	req := claimedRequest()

	f.gateway.On("SendB2C", mock.Anything, req.Msisdn, req.Amount, mock.Anything, req.ID.String()).
		Return(&mpesa.GatewayResponse{
			ConversationID:           "AG_20260829_001",
			OriginatorConversationID: "orig-001",
			ResponseCode:             "0",
			ResponseDescription:      "Accept the service request successfully.",
		}, nil)
	f.repo.On("MarkSubmitted", mock.Anything, req.ID, "AG_20260829_001", "orig-001").Return(true, nil)
	f.repo.On("AppendRetryLog", mock.Anything, mock.MatchedBy(func(e *disbursement.RetryLogEntry) bool {
		return e.DisbursementID == req.ID &&
			e.Attempt == req.RetryCount &&
			e.Outcome == disbursement.RetryOutcomeResubmitted
	})).Return(nil)

	f.sched.RetryOne(context.Background(), req)

	f.repo.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
	f.events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestRetryOne_GatewayUnavailable(t *testing.T) {
	f := newSchedulerFixture(t)
	req := claimedRequest()

	f.gateway.On("SendB2C", mock.Anything, req.Msisdn, req.Amount, mock.Anything, req.ID.String()).
		Return(nil, mpesa.ErrGatewayUnavailable)
	f.repo.On("AppendRetryLog", mock.Anything, mock.MatchedBy(func(e *disbursement.RetryLogEntry) bool {
		return e.Outcome == disbursement.RetryOutcomeUnavailable
	})).Return(nil)

	f.sched.RetryOne(context.Background(), req)

	f.repo.AssertExpectations(t)
	// The row stays pending with next_retry_at already advanced by the
	// claim, so no state transition happens here.
	f.repo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "FlagForReview", mock.Anything, mock.Anything)
}

func TestRetryOne_PermanentRejection(t *testing.T) {
	f := newSchedulerFixture(t)
	req := claimedRequest()

	f.gateway.On("SendB2C", mock.Anything, req.Msisdn, req.Amount, mock.Anything, req.ID.String()).
		Return(&mpesa.GatewayResponse{
			ErrorCode:    "2001",
			ErrorMessage: "The initiator information is invalid.",
		}, nil)
	f.repo.On("MarkFailed", mock.Anything, req.ID, "2001", "The initiator information is invalid.").Return(true, nil)
	f.repo.On("AppendRetryLog", mock.Anything, mock.MatchedBy(func(e *disbursement.RetryLogEntry) bool {
		return e.Outcome == disbursement.RetryOutcomeRejected
	})).Return(nil)
	f.events.On("Publish", mock.Anything, req.ID.String(), mock.MatchedBy(func(e *disbursement.StatusEvent) bool {
		return e.Status == disbursement.StatusFailed && e.ResultCode == "2001"
	})).Return(nil)

	f.sched.RetryOne(context.Background(), req)

	f.repo.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func TestRetryOne_TransientRejection(t *testing.T) {
	f := newSchedulerFixture(t)
	req := claimedRequest()

	f.gateway.On("SendB2C", mock.Anything, req.Msisdn, req.Amount, mock.Anything, req.ID.String()).
		Return(&mpesa.GatewayResponse{
			ErrorCode:    "SERVICE_UNAVAILABLE",
			ErrorMessage: "Service temporarily unavailable",
		}, nil)
	f.repo.On("AppendRetryLog", mock.Anything, mock.MatchedBy(func(e *disbursement.RetryLogEntry) bool {
		return e.Outcome == disbursement.RetryOutcomeRejected
	})).Return(nil)

	f.sched.RetryOne(context.Background(), req)

	f.repo.AssertExpectations(t)
	f.repo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRetryOne_ExhaustedFlagsForReview(t *testing.T) {
	f := newSchedulerFixture(t)
	req := claimedRequest()
	req.RetryCount = 3 // claim already advanced it to the budget

	f.gateway.On("SendB2C", mock.Anything, req.Msisdn, req.Amount, mock.Anything, req.ID.String()).
		Return(nil, mpesa.ErrGatewayUnavailable)
	f.repo.On("AppendRetryLog", mock.Anything, mock.MatchedBy(func(e *disbursement.RetryLogEntry) bool {
		return e.Outcome == disbursement.RetryOutcomeUnavailable
	})).Return(nil)
	f.repo.On("FlagForReview", mock.Anything, req.ID).Return(nil)
	f.repo.On("AppendRetryLog", mock.Anything, mock.MatchedBy(func(e *disbursement.RetryLogEntry) bool {
		return e.Outcome == disbursement.RetryOutcomeExhausted
	})).Return(nil)
	f.events.On("Publish", mock.Anything, req.ID.String(), mock.Anything).Return(nil)

	f.sched.RetryOne(context.Background(), req)

	f.repo.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func TestRetryOne_AcceptedAfterTerminal(t *testing.T) {
	f := newSchedulerFixture(t)
	req := claimedRequest()

	f.gateway.On("SendB2C", mock.Anything, req.Msisdn, req.Amount, mock.Anything, req.ID.String()).
		Return(&mpesa.GatewayResponse{
			ConversationID:           "AG_20260829_002",
			OriginatorConversationID: "orig-002",
			ResponseCode:             "0",
		}, nil)
	f.repo.On("MarkSubmitted", mock.Anything, req.ID, "AG_20260829_002", "orig-002").Return(false, nil)
	f.repo.On("AppendRetryLog", mock.Anything, mock.MatchedBy(func(e *disbursement.RetryLogEntry) bool {
		return e.Outcome == disbursement.RetryOutcomeResubmitted
	})).Return(nil)

	f.sched.RetryOne(context.Background(), req)

	f.repo.AssertExpectations(t)
}

func TestRunOnce_DispatchesClaimedRequests(t *testing.T) {
	f := newSchedulerFixture(t)
	first := claimedRequest()
	second := claimedRequest()

	f.repo.On("ClaimRetryable", mock.Anything, mock.Anything, 50, 5*time.Minute, 2*time.Hour, disbursement.TransientCodes()).
		Return([]*disbursement.Request{first, second}, nil)
	f.gateway.On("SendB2C", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&mpesa.GatewayResponse{ResponseCode: "0", ConversationID: "AG_1", OriginatorConversationID: "orig"}, nil)
	f.repo.On("MarkSubmitted", mock.Anything, mock.Anything, "AG_1", "orig").Return(true, nil)
	f.repo.On("AppendRetryLog", mock.Anything, mock.Anything).Return(nil)

	err := f.sched.RunOnce(context.Background())

	require.NoError(t, err)
	f.repo.AssertExpectations(t)
	f.gateway.AssertNumberOfCalls(t, "SendB2C", 2)
}

func TestRunOnce_NoEligibleRequests(t *testing.T) {
	f := newSchedulerFixture(t)

	f.repo.On("ClaimRetryable", mock.Anything, mock.Anything, 50, 5*time.Minute, 2*time.Hour, disbursement.TransientCodes()).
		Return([]*disbursement.Request{}, nil)

	err := f.sched.RunOnce(context.Background())

	require.NoError(t, err)
	f.gateway.AssertNotCalled(t, "SendB2C", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunOnce_ClaimError(t *testing.T) {
	f := newSchedulerFixture(t)

	f.repo.On("ClaimRetryable", mock.Anything, mock.Anything, 50, 5*time.Minute, 2*time.Hour, disbursement.TransientCodes()).
		Return(nil, errors.New("connection refused"))

	err := f.sched.RunOnce(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to claim retryable requests")
}
