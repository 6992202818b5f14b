package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/loanspur/paymentvalut-sub005/internal/api/service"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/c2b"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/partner"
)

// C2BHandler handles HTTP requests for inbound transaction operations
type C2BHandler struct {
	c2bService service.C2BService
	logger     *slog.Logger
}

// NewC2BHandler creates a new inbound transaction handler
func NewC2BHandler(logger *slog.Logger, c2bService service.C2BService) *C2BHandler {
	return &C2BHandler{
		c2bService: c2bService,
		logger:     logger,
	}
}

// List retrieves inbound transactions with optional status filter. The
// unmatched filter is the worklist for manual reconciliation.
func (h *C2BHandler) List(c *gin.Context) {
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}
	var filter StatusFilterParams
	if err := c.ShouldBindQuery(&filter); err != nil {
		RespondBadRequest(c, "Invalid status filter")
		return
	}

	transactions, total, err := h.c2bService.List(c.Request.Context(), filter.Status, pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to list inbound transactions", "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]InboundTransactionResponse, 0, len(transactions))
	for _, trx := range transactions {
		responses = append(responses, mapInboundTransactionToResponse(trx))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, pagination.Page, pagination.PerPage, int(total))
}

// Allocate assigns an unmatched inbound transaction to a partner and credits
// its wallet
func (h *C2BHandler) Allocate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	var req AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	partnerID, err := uuid.Parse(req.PartnerID)
	if err != nil {
		RespondBadRequest(c, "Invalid partner ID")
		return
	}

	trx, err := h.c2bService.Allocate(c.Request.Context(), id, partnerID)
	if err != nil {
		var trxNotFound c2b.ErrTransactionNotFound
		var partnerNotFound partner.ErrPartnerNotFound
		switch {
		case errors.As(err, &trxNotFound):
			RespondNotFound(c, "Inbound transaction not found")
		case errors.As(err, &partnerNotFound):
			RespondBadRequest(c, "No active partner with that ID")
		case errors.Is(err, service.ErrNotUnmatched):
			RespondConflict(c, "Transaction is not unmatched")
		default:
			h.logger.Error("Failed to allocate inbound transaction", "id", id.String(), "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondOK(c, mapInboundTransactionToResponse(trx))
}

// mapInboundTransactionToResponse maps an inbound transaction to its response DTO
func mapInboundTransactionToResponse(trx *c2b.Transaction) InboundTransactionResponse {
	response := InboundTransactionResponse{
		ID:            trx.ID.String(),
		TransactionID: trx.TransactionID,
		Amount:        trx.Amount,
		BillRefNumber: trx.BillRefNumber,
		Msisdn:        trx.Msisdn,
		CustomerName:  trx.CustomerName,
		Status:        trx.Status,
		CreatedAt:     trx.CreatedAt.Format(time.RFC3339),
	}
	if trx.PartnerID != nil {
		response.PartnerID = trx.PartnerID.String()
	}
	return response
}
