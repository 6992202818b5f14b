// Package reconcile matches asynchronous gateway callbacks to their
// originating requests and applies the resulting state transitions.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/loanspur/paymentvalut-sub005/internal/config"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/balance"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/callback"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/disbursement"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/wallet"
	"github.com/loanspur/paymentvalut-sub005/internal/platform/messaging/producers"
)

// ErrMalformedCallback indicates the callback payload could not be parsed
var ErrMalformedCallback = errors.New("malformed callback payload")

// TxRunner runs a function inside a database transaction
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Reconciler ingests result and timeout callbacks. Every callback is stored
// verbatim in the audit store with its match outcome, then the matched row,
// the wallet, and the status event are updated together.
type Reconciler struct {
	txRunner      TxRunner
	disbursements disbursement.Repository
	wallets       wallet.Repository
	balances      balance.Repository
	callbacks     callback.Repository
	events        producers.MessagePublisher
	dlq           producers.DeadLetterPublisher
	retryCfg      *config.RetryConfig
	logger        *slog.Logger
}

// NewReconciler creates a callback reconciler
func NewReconciler(
	txRunner TxRunner,
	disbursements disbursement.Repository,
	wallets wallet.Repository,
	balances balance.Repository,
	callbacks callback.Repository,
	events producers.MessagePublisher,
	dlq producers.DeadLetterPublisher,
	retryCfg *config.RetryConfig,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		txRunner:      txRunner,
		disbursements: disbursements,
		wallets:       wallets,
		balances:      balances,
		callbacks:     callbacks,
		events:        events,
		dlq:           dlq,
		retryCfg:      retryCfg,
		logger:        logger,
	}
}

// IngestResult processes one result callback. The return value reports
// whether the callback was accepted; redeliveries and unmatched callbacks
// are accepted so the gateway stops resending them.
func (r *Reconciler) IngestResult(ctx context.Context, payload []byte) error {
	var envelope ResultEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	body := &envelope.Result

	req, err := r.matchDisbursement(ctx, body)
	if err != nil {
		return err
	}

	if req != nil {
		r.audit(ctx, callback.KindResult, body, payload, callback.MatchDisbursement, req.ID.String())
		return r.applyDisbursementResult(ctx, req, body)
	}

	bal, err := r.matchBalance(ctx, body)
	if err != nil {
		return err
	}
	if bal != nil {
		r.audit(ctx, callback.KindResult, body, payload, callback.MatchBalance, bal.ID.String())
		return r.applyBalanceResult(ctx, bal, body)
	}

	r.logger.Warn("Callback matched no request",
		"conversation_id", body.ConversationID,
		"originator_conversation_id", body.OriginatorConversationID,
	)
	r.audit(ctx, callback.KindResult, body, payload, callback.MatchNone, "")
	return nil
}

// IngestTimeout processes a queue timeout callback. A timeout means the
// outcome is unknown, so the matched request goes to pending for a later
// retry; it is never failed here.
func (r *Reconciler) IngestTimeout(ctx context.Context, payload []byte) error {
	var envelope ResultEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	body := &envelope.Result

	req, err := r.matchDisbursement(ctx, body)
	if err != nil {
		return err
	}
	if req == nil {
		r.audit(ctx, callback.KindTimeout, body, payload, callback.MatchNone, "")
		return nil
	}

	r.audit(ctx, callback.KindTimeout, body, payload, callback.MatchDisbursement, req.ID.String())

	nextRetryAt := time.Now().Add(disbursement.NextBackoff(r.retryCfg.BaseDelay, r.retryCfg.MaxDelay, req.RetryCount))
	applied, err := r.disbursements.MarkPendingRetry(ctx, req.ID, disbursement.ResultCodeTimeout, "queue timeout, outcome unknown", nextRetryAt)
	if err != nil {
		return err
	}
	if !applied {
		r.logger.Info("Timeout callback for terminal request ignored", "disbursement_id", req.ID.String())
	}
	return nil
}

// matchDisbursement resolves a callback to a disbursement request by
// conversation ID, then originator conversation ID, then the request ID
// echoed back in the Occasion field.
func (r *Reconciler) matchDisbursement(ctx context.Context, body *ResultBody) (*disbursement.Request, error) {
	if body.ConversationID != "" {
		req, err := r.disbursements.GetByConversationID(ctx, body.ConversationID)
		if err != nil {
			return nil, err
		}
		if req != nil {
			return req, nil
		}
	}

	if body.OriginatorConversationID != "" {
		req, err := r.disbursements.GetByOriginatorConversationID(ctx, body.OriginatorConversationID)
		if err != nil {
			return nil, err
		}
		if req != nil {
			return req, nil
		}
	}

	if occasion := body.Occasion(); occasion != "" {
		id, err := uuid.Parse(occasion)
		if err != nil {
			return nil, nil
		}
		req, err := r.disbursements.GetByID(ctx, id)
		if err != nil {
			var notFound disbursement.ErrRequestNotFound
			if errors.As(err, &notFound) {
				return nil, nil
			}
			return nil, err
		}
		return req, nil
	}

	return nil, nil
}

func (r *Reconciler) matchBalance(ctx context.Context, body *ResultBody) (*balance.Request, error) {
	for _, id := range []string{body.ConversationID, body.OriginatorConversationID} {
		if id == "" {
			continue
		}
		bal, err := r.balances.GetByConversationID(ctx, id)
		if err != nil {
			return nil, err
		}
		if bal != nil {
			return bal, nil
		}
	}
	return nil, nil
}

// applyDisbursementResult classifies the result code and applies the
// matching transition.
func (r *Reconciler) applyDisbursementResult(ctx context.Context, req *disbursement.Request, body *ResultBody) error {
	code := body.ResultCode.String()

	switch {
	case code == disbursement.ResultCodeSuccess:
		return r.finalizeSuccess(ctx, req, body)

	case code == disbursement.ResultCodeProcessing:
		// Still processing at the gateway. Not a failure; the final
		// outcome arrives in a later callback or a retry scan re-queries.
		applied, err := r.disbursements.RecordProcessing(ctx, req.ID, code, body.ResultDesc)
		if err != nil {
			return err
		}
		if !applied {
			r.logger.Info("Processing update for terminal request ignored", "disbursement_id", req.ID.String())
		}
		return nil

	case disbursement.IsTransientCode(code):
		nextRetryAt := time.Now().Add(disbursement.NextBackoff(r.retryCfg.BaseDelay, r.retryCfg.MaxDelay, req.RetryCount))
		applied, err := r.disbursements.MarkPendingRetry(ctx, req.ID, code, body.ResultDesc, nextRetryAt)
		if err != nil {
			return err
		}
		if !applied {
			r.logger.Info("Transient failure for terminal request ignored", "disbursement_id", req.ID.String())
		}
		return nil

	default:
		applied, err := r.disbursements.MarkFailed(ctx, req.ID, code, body.ResultDesc)
		if err != nil {
			return err
		}
		if applied {
			r.publishStatusEvent(ctx, req, disbursement.StatusFailed, code, body.ResultDesc, "")
		} else {
			r.logger.Info("Failure callback for terminal request ignored", "disbursement_id", req.ID.String())
		}
		return nil
	}
}

// finalizeSuccess applies the terminal success transition and the wallet
// debit in one database transaction. A redelivered success callback finds
// the row already terminal and changes nothing.
func (r *Reconciler) finalizeSuccess(ctx context.Context, req *disbursement.Request, body *ResultBody) error {
	settled := body.amountParam(paramTransactionAmount)
	res := &disbursement.FinalResult{
		ResultCode:     body.ResultCode.String(),
		ResultDesc:     body.ResultDesc,
		TransactionID:  body.TransactionID,
		ReceiptNumber:  body.stringParam(paramTransactionReceipt),
		SettledAmount:  settled,
		SettlementDate: body.stringParam(paramTransactionDate),
		WorkingBalance: body.amountParam(paramWorkingFunds),
		UtilityBalance: body.amountParam(paramUtilityFunds),
		ChargesBalance: body.amountParam(paramChargesFunds),
	}

	var applied bool
	err := r.txRunner.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		applied, err = r.disbursements.WithTx(tx).FinalizeSuccess(ctx, req.ID, res)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}

		debitAmount := req.Amount
		if settled != nil {
			debitAmount = *settled
		}
		debit, err := wallet.NewTransaction(req.PartnerID, wallet.TypeDebit, debitAmount, req.ID.String(), "B2C disbursement "+req.ClientRequestID)
		if err != nil {
			return err
		}
		return r.wallets.WithTx(tx).Debit(ctx, debit)
	})
	if err != nil {
		var dupErr wallet.ErrDuplicateEntry
		if errors.As(err, &dupErr) {
			// The debit was already posted by an earlier delivery whose
			// commit raced this one. The rollback keeps the books straight.
			r.logger.Warn("Wallet debit already posted, callback treated as redelivery",
				"disbursement_id", req.ID.String())
			return nil
		}
		return err
	}

	if applied {
		r.publishStatusEvent(ctx, req, disbursement.StatusSuccess, res.ResultCode, res.ResultDesc, res.ReceiptNumber)
	} else {
		r.logger.Info("Success callback for terminal request ignored", "disbursement_id", req.ID.String())
	}
	return nil
}

func (r *Reconciler) applyBalanceResult(ctx context.Context, bal *balance.Request, body *ResultBody) error {
	res := &balance.Result{
		ResultCode: body.ResultCode.String(),
		ResultDesc: body.ResultDesc,
	}
	res.WorkingBalance, res.UtilityBalance, res.ChargesBalance = parseAccountBalance(body.stringParam(paramAccountBalance))

	applied, err := r.balances.Complete(ctx, bal.ID, res)
	if err != nil {
		return err
	}
	if !applied {
		r.logger.Info("Balance callback for completed request ignored", "balance_request_id", bal.ID.String())
	}
	return nil
}

// publishStatusEvent emits a terminal status event, falling back to the DLQ
// when the primary topic is unreachable. Event delivery failures never fail
// the callback; the database row is the source of truth.
func (r *Reconciler) publishStatusEvent(ctx context.Context, req *disbursement.Request, status disbursement.Status, code, desc, receipt string) {
	event := &disbursement.StatusEvent{
		DisbursementID:  req.ID,
		PartnerID:       req.PartnerID,
		ClientRequestID: req.ClientRequestID,
		Status:          status,
		ResultCode:      code,
		ResultDesc:      desc,
		ReceiptNumber:   receipt,
		Amount:          req.Amount,
		Msisdn:          req.Msisdn,
		OccurredAt:      time.Now().UTC(),
	}

	if err := r.events.Publish(ctx, req.ID.String(), event); err != nil {
		r.logger.Error("Failed to publish status event, routing to DLQ",
			"disbursement_id", req.ID.String(),
			"error", err,
		)
		raw, marshalErr := json.Marshal(event)
		if marshalErr != nil {
			return
		}
		if r.dlq == nil {
			return
		}
		if dlqErr := r.dlq.PublishToDLQ(ctx, req.ID.String(), raw, err.Error()); dlqErr != nil {
			r.logger.Error("Failed to publish status event to DLQ",
				"disbursement_id", req.ID.String(),
				"error", dlqErr,
			)
		}
	}
}

// audit stores the raw callback with its match outcome. Audit failures are
// logged and swallowed; they must not block reconciliation.
func (r *Reconciler) audit(ctx context.Context, kind string, body *ResultBody, payload []byte, outcome, matchedID string) {
	rec := &callback.Record{
		ID:                       uuid.New(),
		Kind:                     kind,
		ConversationID:           body.ConversationID,
		OriginatorConversationID: body.OriginatorConversationID,
		TransactionID:            body.TransactionID,
		MatchOutcome:             outcome,
		MatchedID:                matchedID,
		Payload:                  string(payload),
		ReceivedAt:               time.Now().UTC(),
	}
	if err := r.callbacks.Insert(ctx, rec); err != nil {
		r.logger.Error("Failed to store callback audit record",
			"kind", kind,
			"conversation_id", body.ConversationID,
			"error", err,
		)
	}
}

// parseAccountBalance decodes the packed AccountBalance parameter, e.g.
// "Working Account|KES|700000.00|700000.00|0.00|0.00&Utility Account|...".
// Unrecognized segments are skipped.
func parseAccountBalance(raw string) (working, utility, charges *int64) {
	if raw == "" {
		return nil, nil, nil
	}
	for _, segment := range strings.Split(raw, "&") {
		fields := strings.Split(segment, "|")
		if len(fields) < 3 {
			continue
		}
		amount, err := parseMajorAmount(fields[2])
		if err != nil {
			continue
		}
		name := strings.ToLower(fields[0])
		switch {
		case strings.Contains(name, "working"):
			working = &amount
		case strings.Contains(name, "utility"):
			utility = &amount
		case strings.Contains(name, "charges"):
			charges = &amount
		}
	}
	return working, utility, charges
}
