package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loanspur/paymentvalut-sub005/internal/inbound"
)

// InboundProcessor authenticates and applies paybill payment notifications
type InboundProcessor interface {
	Process(ctx context.Context, n *inbound.Notification) *inbound.Ack
}

// InboundHandler receives paybill payment notifications from the banking partner
type InboundHandler struct {
	processor InboundProcessor
	logger    *slog.Logger
}

// NewInboundHandler creates a new inbound notification handler
func NewInboundHandler(logger *slog.Logger, processor InboundProcessor) *InboundHandler {
	return &InboundHandler{
		processor: processor,
		logger:    logger,
	}
}

// Notify processes a paybill notification. The bank gateway only understands
// the synchronous acknowledgement object, so every outcome is a 200 with a
// result code; authentication and processing decisions live in the processor.
func (h *InboundHandler) Notify(c *gin.Context) {
	var n inbound.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		h.logger.Warn("Unparseable paybill notification", "error", err)
		c.JSON(http.StatusOK, &inbound.Ack{
			ResultCode: inbound.AckRejected,
			ResultDesc: "malformed notification",
		})
		return
	}

	ack := h.processor.Process(c.Request.Context(), &n)
	c.JSON(http.StatusOK, ack)
}
