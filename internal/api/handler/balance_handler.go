package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loanspur/paymentvalut-sub005/internal/api/service"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/balance"
)

// BalanceHandler handles HTTP requests for gateway balance checks
type BalanceHandler struct {
	balanceService service.BalanceService
	logger         *slog.Logger
}

// NewBalanceHandler creates a new balance check handler
func NewBalanceHandler(logger *slog.Logger, balanceService service.BalanceService) *BalanceHandler {
	return &BalanceHandler{
		balanceService: balanceService,
		logger:         logger,
	}
}

// Trigger asks the gateway for the account balance. The answer arrives later
// through the result callback channel, so the response is the pending intent.
func (h *BalanceHandler) Trigger(c *gin.Context) {
	req, err := h.balanceService.Trigger(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to trigger balance check", "error", err)
		RespondWithError(c, 502, "GATEWAY_ERROR", "Balance check could not be submitted to the gateway")
		return
	}

	RespondAccepted(c, mapBalanceRequestToResponse(req))
}

// List retrieves recent balance check requests
func (h *BalanceHandler) List(c *gin.Context) {
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	requests, err := h.balanceService.List(c.Request.Context(), pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to list balance requests", "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]BalanceRequestResponse, 0, len(requests))
	for _, req := range requests {
		responses = append(responses, mapBalanceRequestToResponse(req))
	}

	RespondOK(c, responses)
}

// mapBalanceRequestToResponse maps a balance check intent to its response DTO
func mapBalanceRequestToResponse(req *balance.Request) BalanceRequestResponse {
	return BalanceRequestResponse{
		ID:             req.ID.String(),
		ConversationID: req.ConversationID,
		Status:         req.Status,
		WorkingBalance: req.WorkingBalance,
		UtilityBalance: req.UtilityBalance,
		ChargesBalance: req.ChargesBalance,
		ResultCode:     req.ResultCode,
		CreatedAt:      req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      req.UpdatedAt.Format(time.RFC3339),
	}
}
