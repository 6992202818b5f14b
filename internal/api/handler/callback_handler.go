package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loanspur/paymentvalut-sub005/internal/reconcile"
)

// CallbackReconciler matches asynchronous gateway callbacks back to the
// request that caused them
type CallbackReconciler interface {
	IngestResult(ctx context.Context, payload []byte) error
	IngestTimeout(ctx context.Context, payload []byte) error
}

// CallbackHandler receives asynchronous result and timeout callbacks from the
// mobile money gateway
type CallbackHandler struct {
	reconciler CallbackReconciler
	logger     *slog.Logger
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(logger *slog.Logger, reconciler CallbackReconciler) *CallbackHandler {
	return &CallbackHandler{
		reconciler: reconciler,
		logger:     logger,
	}
}

// Result ingests a result callback. Malformed payloads are acknowledged:
// the gateway redelivering the same garbage helps nobody. Storage failures
// return 500 so the gateway redelivers; redelivery is idempotent.
func (h *CallbackHandler) Result(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("Failed to read result callback body", "error", err)
		h.ack(c)
		return
	}

	if err := h.reconciler.IngestResult(c.Request.Context(), payload); err != nil {
		if errors.Is(err, reconcile.ErrMalformedCallback) {
			h.logger.Warn("Discarded malformed result callback", "error", err)
			h.ack(c)
			return
		}
		h.logger.Error("Failed to ingest result callback", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"ResultCode": 1,
			"ResultDesc": "Service error, please retry",
		})
		return
	}

	h.ack(c)
}

// Timeout ingests a queue timeout callback. The outcome of the original
// request is unknown, so the reconciler only reschedules it.
func (h *CallbackHandler) Timeout(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("Failed to read timeout callback body", "error", err)
		h.ack(c)
		return
	}

	if err := h.reconciler.IngestTimeout(c.Request.Context(), payload); err != nil {
		if errors.Is(err, reconcile.ErrMalformedCallback) {
			h.logger.Warn("Discarded malformed timeout callback", "error", err)
			h.ack(c)
			return
		}
		h.logger.Error("Failed to ingest timeout callback", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"ResultCode": 1,
			"ResultDesc": "Service error, please retry",
		})
		return
	}

	h.ack(c)
}

// ack sends the acknowledgement object the gateway expects
func (h *CallbackHandler) ack(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ResultCode": 0,
		"ResultDesc": "Accepted",
	})
}
