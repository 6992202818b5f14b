package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loanspur/paymentvalut-sub005/internal/config"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/disbursement"
	"github.com/loanspur/paymentvalut-sub005/internal/mpesa"
	"github.com/loanspur/paymentvalut-sub005/internal/platform/messaging/producers"
)

// DisbursementServiceImpl implements the DisbursementService interface
type DisbursementServiceImpl struct {
	disbursements disbursement.Repository
	gateway       Gateway
	retrier       RetrySubmitter
	events        producers.MessagePublisher
	retryCfg      *config.RetryConfig
	logger        *slog.Logger
}

// NewDisbursementService creates a new disbursement service
func NewDisbursementService(
	logger *slog.Logger,
	disbursements disbursement.Repository,
	gateway Gateway,
	retrier RetrySubmitter,
	events producers.MessagePublisher,
	retryCfg *config.RetryConfig,
) DisbursementService {
	return &DisbursementServiceImpl{
		disbursements: disbursements,
		gateway:       gateway,
		retrier:       retrier,
		events:        events,
		retryCfg:      retryCfg,
		logger:        logger,
	}
}

// Submit creates a disbursement request and hands it to the gateway. The
// request row exists before the gateway call, so a crash between the two
// leaves a queued row rather than an untracked payment.
func (s *DisbursementServiceImpl) Submit(ctx context.Context, partnerID uuid.UUID, clientRequestID, msisdn string, amount int64, currency string) (*disbursement.Request, bool, error) {
	existing, err := s.disbursements.GetByClientRequestID(ctx, partnerID, clientRequestID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		s.logger.Info("Found existing request for client request id",
			"client_request_id", clientRequestID,
			"disbursement_id", existing.ID.String(),
			"status", string(existing.Status),
		)
		return existing, false, nil
	}

	req, err := disbursement.NewRequest(partnerID, clientRequestID, msisdn, amount, currency, s.retryCfg.DefaultMaxRetries)
	if err != nil {
		return nil, false, err
	}

	if err := s.disbursements.Create(ctx, req); err != nil {
		var dup disbursement.ErrDuplicateClientRequestID
		if errors.As(err, &dup) {
			// A concurrent submit with the same key won the insert race
			existing, lookupErr := s.disbursements.GetByClientRequestID(ctx, partnerID, clientRequestID)
			if lookupErr != nil {
				return nil, false, lookupErr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	s.submitToGateway(ctx, req)

	return req, true, nil
}

// submitToGateway performs the synchronous gateway call and applies the
// resulting transition. Gateway trouble is absorbed into retry state, never
// surfaced to the submitting partner.
func (s *DisbursementServiceImpl) submitToGateway(ctx context.Context, req *disbursement.Request) {
	logger := s.logger.With("disbursement_id", req.ID.String())

	resp, err := s.gateway.SendB2C(ctx, req.Msisdn, req.Amount, "disbursement "+req.ClientRequestID, req.ID.String())
	if err != nil {
		if !errors.Is(err, mpesa.ErrGatewayUnavailable) {
			logger.Error("Gateway call failed at submit", "error", err)
		} else {
			logger.Warn("Gateway unavailable at submit, outcome unknown")
		}
		s.schedulePendingRetry(ctx, req, disbursement.ResultCodeUnavailable, "gateway unavailable at submit")
		return
	}

	if resp.Accepted() {
		applied, err := s.disbursements.MarkSubmitted(ctx, req.ID, resp.ConversationID, resp.OriginatorConversationID)
		if err != nil {
			logger.Error("Failed to mark request submitted", "error", err)
			return
		}
		if applied {
			req.Status = disbursement.StatusSubmitted
			req.ConversationID = resp.ConversationID
			req.OriginatorConversationID = resp.OriginatorConversationID
		}
		logger.Info("Gateway accepted disbursement request",
			"conversation_id", resp.ConversationID,
			"originator_conversation_id", resp.OriginatorConversationID,
		)
		return
	}

	code := resp.Code()
	if disbursement.IsTransientCode(code) {
		logger.Warn("Gateway rejected submit with transient code", "code", code)
		s.schedulePendingRetry(ctx, req, code, resp.Description())
		return
	}

	logger.Warn("Gateway rejected submit permanently", "code", code, "description", resp.Description())
	applied, err := s.disbursements.MarkFailed(ctx, req.ID, code, resp.Description())
	if err != nil {
		logger.Error("Failed to mark request failed", "error", err)
		return
	}
	req.Status = disbursement.StatusFailed
	req.ResultCode = code
	req.ResultDesc = resp.Description()
	if applied {
		s.publishStatusEvent(ctx, req)
	}
}

func (s *DisbursementServiceImpl) schedulePendingRetry(ctx context.Context, req *disbursement.Request, code, desc string) {
	nextRetryAt := time.Now().Add(s.retryCfg.BaseDelay)
	applied, err := s.disbursements.MarkPendingRetry(ctx, req.ID, code, desc, nextRetryAt)
	if err != nil {
		s.logger.Error("Failed to schedule retry for request",
			"disbursement_id", req.ID.String(),
			"error", err,
		)
		return
	}
	if applied {
		req.Status = disbursement.StatusPending
		req.ResultCode = code
		req.ResultDesc = desc
		req.NextRetryAt = &nextRetryAt
	}
}

func (s *DisbursementServiceImpl) publishStatusEvent(ctx context.Context, req *disbursement.Request) {
	event := &disbursement.StatusEvent{
		DisbursementID:  req.ID,
		PartnerID:       req.PartnerID,
		ClientRequestID: req.ClientRequestID,
		Status:          req.Status,
		ResultCode:      req.ResultCode,
		ResultDesc:      req.ResultDesc,
		Amount:          req.Amount,
		Msisdn:          req.Msisdn,
		OccurredAt:      time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, req.ID.String(), event); err != nil {
		// The authoritative state is in the store; event delivery failures
		// must not fail the submit.
		s.logger.Error("Failed to publish status event",
			"disbursement_id", req.ID.String(),
			"error", err,
		)
	}
}

// GetByID retrieves a request scoped to the owning partner
func (s *DisbursementServiceImpl) GetByID(ctx context.Context, partnerID, id uuid.UUID) (*disbursement.Request, error) {
	req, err := s.disbursements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.PartnerID != partnerID {
		// Foreign requests are indistinguishable from missing ones
		return nil, disbursement.ErrRequestNotFound{ID: id}
	}
	return req, nil
}

// List retrieves a partner's requests with optional status filter
func (s *DisbursementServiceImpl) List(ctx context.Context, partnerID uuid.UUID, status string, page, perPage int) ([]*disbursement.Request, int64, error) {
	offset := (page - 1) * perPage

	requests, err := s.disbursements.ListByPartner(ctx, partnerID, status, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.disbursements.CountByPartner(ctx, partnerID, status)
	if err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// RetryLog retrieves the append-only retry history for a request
func (s *DisbursementServiceImpl) RetryLog(ctx context.Context, partnerID, id uuid.UUID) ([]*disbursement.RetryLogEntry, error) {
	if _, err := s.GetByID(ctx, partnerID, id); err != nil {
		return nil, err
	}
	return s.disbursements.ListRetryLog(ctx, id)
}

// Retry re-submits a non-terminal request immediately
func (s *DisbursementServiceImpl) Retry(ctx context.Context, partnerID, id uuid.UUID) (*disbursement.Request, error) {
	req, err := s.GetByID(ctx, partnerID, id)
	if err != nil {
		return nil, err
	}
	if req.Status.IsTerminal() {
		return nil, ErrNotRetryable
	}

	s.logger.Info("Manual retry requested",
		"disbursement_id", req.ID.String(),
		"status", string(req.Status),
	)
	s.retrier.RetryOne(ctx, req)

	return s.disbursements.GetByID(ctx, id)
}
