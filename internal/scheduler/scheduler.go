// Package scheduler re-submits disbursement requests whose last outcome was
// transient: gateway timeouts, service unavailability, or requests still
// pending past their retry time.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loanspur/paymentvalut-sub005/internal/config"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/disbursement"
	"github.com/loanspur/paymentvalut-sub005/internal/mpesa"
	"github.com/loanspur/paymentvalut-sub005/internal/platform/messaging/producers"
)

// GatewayClient submits business payments to the mobile money gateway
type GatewayClient interface {
	SendB2C(ctx context.Context, msisdn string, amount int64, remarks, occasion string) (*mpesa.GatewayResponse, error)
}

// Scheduler scans for retry-eligible requests and re-submits them to the
// gateway through a bounded worker pool.
type Scheduler struct {
	disbursements disbursement.Repository
	gateway       GatewayClient
	dispatcher    *Dispatcher
	events        producers.MessagePublisher
	dlq           producers.DeadLetterPublisher
	retryCfg      *config.RetryConfig
	logger        *slog.Logger
}

// NewScheduler creates a retry scheduler
func NewScheduler(
	disbursements disbursement.Repository,
	gateway GatewayClient,
	dispatcher *Dispatcher,
	events producers.MessagePublisher,
	dlq producers.DeadLetterPublisher,
	retryCfg *config.RetryConfig,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		disbursements: disbursements,
		gateway:       gateway,
		dispatcher:    dispatcher,
		events:        events,
		dlq:           dlq,
		retryCfg:      retryCfg,
		logger:        logger,
	}
}

// Start runs retry scans until the context is canceled
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting retry scheduler",
		"scan_interval", s.retryCfg.ScanInterval.String(),
		"batch_size", s.retryCfg.BatchSize,
	)
	ticker := time.NewTicker(s.retryCfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Retry scheduler stopping due to context cancellation.")
			return
		case <-ticker.C:
			s.logger.Debug("Retry scheduler tick: scanning for eligible requests")
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("Error during retry scan", "error", err)
			}
		}
	}
}

// RunOnce performs a single retry scan. Claiming advances each row's retry
// bookkeeping atomically, so concurrent scheduler instances never re-submit
// the same request twice.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	requests, err := s.disbursements.ClaimRetryable(
		ctx,
		time.Now(),
		s.retryCfg.BatchSize,
		s.retryCfg.BaseDelay,
		s.retryCfg.MaxDelay,
		disbursement.TransientCodes(),
	)
	if err != nil {
		return fmt.Errorf("failed to claim retryable requests: %w", err)
	}

	if len(requests) == 0 {
		s.logger.Debug("No retry-eligible requests found.")
		return nil
	}

	s.logger.Info("Claimed retry-eligible requests", "count", len(requests))

	tasks := make([]func(), 0, len(requests))
	for _, req := range requests {
		req := req
		tasks = append(tasks, func() {
			s.RetryOne(ctx, req)
		})
	}
	s.dispatcher.Dispatch(tasks)

	return nil
}

// RetryOne re-submits a single claimed request. The claim already advanced
// retry_count and next_retry_at, so every exit path leaves a consistent row.
func (s *Scheduler) RetryOne(ctx context.Context, req *disbursement.Request) {
	logger := s.logger.With(
		"disbursement_id", req.ID.String(),
		"attempt", req.RetryCount,
	)
	logger.Info("Re-submitting disbursement request")

	resp, err := s.gateway.SendB2C(ctx, req.Msisdn, req.Amount, "retry "+req.ClientRequestID, req.ID.String())
	if err != nil {
		if errors.Is(err, mpesa.ErrGatewayUnavailable) {
			logger.Warn("Gateway unavailable during retry, outcome unknown", "error", err)
			s.appendLog(ctx, req, disbursement.RetryOutcomeUnavailable, err.Error())
			s.checkExhausted(ctx, req, logger)
			return
		}
		logger.Error("Retry submission failed", "error", err)
		s.appendLog(ctx, req, disbursement.RetryOutcomeRejected, err.Error())
		s.checkExhausted(ctx, req, logger)
		return
	}

	if resp.Accepted() {
		applied, err := s.disbursements.MarkSubmitted(ctx, req.ID, resp.ConversationID, resp.OriginatorConversationID)
		if err != nil {
			logger.Error("Failed to mark request submitted after retry", "error", err)
			return
		}
		if !applied {
			logger.Info("Request turned terminal while retrying, resubmission recorded for review")
			s.appendLog(ctx, req, disbursement.RetryOutcomeResubmitted, "accepted after request turned terminal")
			return
		}
		logger.Info("Retry accepted by gateway", "conversation_id", resp.ConversationID)
		s.appendLog(ctx, req, disbursement.RetryOutcomeResubmitted, resp.Description())
		return
	}

	// Synchronous rejection
	code := resp.Code()
	if disbursement.IsTransientCode(code) {
		logger.Warn("Retry rejected with transient code", "code", code)
		s.appendLog(ctx, req, disbursement.RetryOutcomeRejected, resp.Description())
		s.checkExhausted(ctx, req, logger)
		return
	}

	logger.Warn("Retry rejected permanently", "code", code)
	applied, err := s.disbursements.MarkFailed(ctx, req.ID, code, resp.Description())
	if err != nil {
		logger.Error("Failed to mark request failed after rejected retry", "error", err)
		return
	}
	s.appendLog(ctx, req, disbursement.RetryOutcomeRejected, resp.Description())
	if applied {
		s.publishStatusEvent(ctx, req, disbursement.StatusFailed, code, resp.Description())
	}
}

// checkExhausted flags requests that used their whole retry budget without a
// terminal outcome so an operator can resolve them manually.
func (s *Scheduler) checkExhausted(ctx context.Context, req *disbursement.Request, logger *slog.Logger) {
	if req.RetryCount < req.MaxRetries {
		return
	}

	logger.Warn("Retry budget exhausted, flagging for review", "max_retries", req.MaxRetries)
	if err := s.disbursements.FlagForReview(ctx, req.ID); err != nil {
		logger.Error("Failed to flag exhausted request for review", "error", err)
	}
	s.appendLog(ctx, req, disbursement.RetryOutcomeExhausted, "retry budget exhausted")
	s.publishStatusEvent(ctx, req, req.Status, req.ResultCode, "retry budget exhausted")
}

func (s *Scheduler) appendLog(ctx context.Context, req *disbursement.Request, outcome disbursement.RetryOutcome, reason string) {
	entry := &disbursement.RetryLogEntry{
		DisbursementID: req.ID,
		Attempt:        req.RetryCount,
		Outcome:        outcome,
		Reason:         reason,
		CreatedAt:      time.Now(),
	}
	if err := s.disbursements.AppendRetryLog(ctx, entry); err != nil {
		s.logger.Error("Failed to append retry log entry",
			"disbursement_id", req.ID.String(),
			"outcome", outcome,
			"error", err,
		)
	}
}

func (s *Scheduler) publishStatusEvent(ctx context.Context, req *disbursement.Request, status disbursement.Status, code, desc string) {
	event := &disbursement.StatusEvent{
		DisbursementID:  req.ID,
		PartnerID:       req.PartnerID,
		ClientRequestID: req.ClientRequestID,
		Status:          status,
		ResultCode:      code,
		ResultDesc:      desc,
		Amount:          req.Amount,
		Msisdn:          req.Msisdn,
		OccurredAt:      time.Now().UTC(),
	}

	if err := s.events.Publish(ctx, req.ID.String(), event); err != nil {
		s.logger.Error("Failed to publish status event, routing to DLQ",
			"disbursement_id", req.ID.String(),
			"error", err,
		)
		raw, marshalErr := json.Marshal(event)
		if marshalErr != nil || s.dlq == nil {
			return
		}
		if dlqErr := s.dlq.PublishToDLQ(ctx, req.ID.String(), raw, err.Error()); dlqErr != nil {
			s.logger.Error("Failed to publish status event to DLQ",
				"disbursement_id", req.ID.String(),
				"error", dlqErr,
			)
		}
	}
}
