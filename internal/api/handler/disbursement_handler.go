package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/loanspur/paymentvalut-sub005/internal/api/middleware"
	"github.com/loanspur/paymentvalut-sub005/internal/api/service"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/disbursement"
)

// DisbursementHandler handles HTTP requests for disbursement operations
type DisbursementHandler struct {
	disbursementService service.DisbursementService
	logger              *slog.Logger
}

// NewDisbursementHandler creates a new disbursement handler
func NewDisbursementHandler(logger *slog.Logger, disbursementService service.DisbursementService) *DisbursementHandler {
	return &DisbursementHandler{
		disbursementService: disbursementService,
		logger:              logger,
	}
}

// Submit creates and submits a new disbursement request. Resubmission with a
// known client_request_id returns the existing request with 200 instead of 201.
func (h *DisbursementHandler) Submit(c *gin.Context) {
	p, ok := middleware.GetPartner(c)
	if !ok {
		RespondWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	var req SubmitDisbursementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, created, err := h.disbursementService.Submit(c.Request.Context(), p.ID, req.ClientRequestID, req.Msisdn, req.Amount, req.Currency)
	if err != nil {
		switch {
		case errors.Is(err, disbursement.ErrInvalidAmount),
			errors.Is(err, disbursement.ErrFractionalAmount),
			errors.Is(err, disbursement.ErrInvalidMsisdn),
			errors.Is(err, disbursement.ErrMissingClientRef):
			RespondBadRequest(c, err.Error())
		default:
			h.logger.Error("Failed to submit disbursement", "error", err)
			RespondInternalError(c)
		}
		return
	}

	response := mapDisbursementToResponse(result)
	if created {
		RespondCreated(c, response)
		return
	}
	RespondOK(c, response)
}

// GetByID retrieves a disbursement request, returning 404 if missing or
// owned by another partner
func (h *DisbursementHandler) GetByID(c *gin.Context) {
	p, ok := middleware.GetPartner(c)
	if !ok {
		RespondWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid disbursement ID")
		return
	}

	req, err := h.disbursementService.GetByID(c.Request.Context(), p.ID, id)
	if err != nil {
		var notFound disbursement.ErrRequestNotFound
		if errors.As(err, &notFound) {
			RespondNotFound(c, "Disbursement request not found")
			return
		}
		h.logger.Error("Failed to get disbursement", "id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapDisbursementToResponse(req))
}

// List retrieves the partner's disbursement requests with optional status filter
func (h *DisbursementHandler) List(c *gin.Context) {
	p, ok := middleware.GetPartner(c)
	if !ok {
		RespondWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

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

	requests, total, err := h.disbursementService.List(c.Request.Context(), p.ID, filter.Status, pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to list disbursements", "partner_id", p.ID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]DisbursementResponse, 0, len(requests))
	for _, req := range requests {
		responses = append(responses, mapDisbursementToResponse(req))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, pagination.Page, pagination.PerPage, int(total))
}

// RetryLog retrieves the append-only retry history for a disbursement request
func (h *DisbursementHandler) RetryLog(c *gin.Context) {
	p, ok := middleware.GetPartner(c)
	if !ok {
		RespondWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid disbursement ID")
		return
	}

	entries, err := h.disbursementService.RetryLog(c.Request.Context(), p.ID, id)
	if err != nil {
		var notFound disbursement.ErrRequestNotFound
		if errors.As(err, &notFound) {
			RespondNotFound(c, "Disbursement request not found")
			return
		}
		h.logger.Error("Failed to get retry log", "id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]RetryLogEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, RetryLogEntryResponse{
			Attempt:   entry.Attempt,
			Outcome:   string(entry.Outcome),
			Reason:    entry.Reason,
			CreatedAt: entry.CreatedAt.Format(time.RFC3339),
		})
	}

	RespondOK(c, responses)
}

// Retry re-submits a non-terminal disbursement request immediately
func (h *DisbursementHandler) Retry(c *gin.Context) {
	p, ok := middleware.GetPartner(c)
	if !ok {
		RespondWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid disbursement ID")
		return
	}

	req, err := h.disbursementService.Retry(c.Request.Context(), p.ID, id)
	if err != nil {
		var notFound disbursement.ErrRequestNotFound
		switch {
		case errors.As(err, &notFound):
			RespondNotFound(c, "Disbursement request not found")
		case errors.Is(err, service.ErrNotRetryable):
			RespondConflict(c, "Request already reached a terminal state")
		default:
			h.logger.Error("Failed to retry disbursement", "id", id.String(), "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondAccepted(c, mapDisbursementToResponse(req))
}

// mapDisbursementToResponse maps a disbursement request to its response DTO
func mapDisbursementToResponse(req *disbursement.Request) DisbursementResponse {
	response := DisbursementResponse{
		ID:                       req.ID.String(),
		ClientRequestID:          req.ClientRequestID,
		Msisdn:                   req.Msisdn,
		Amount:                   req.Amount,
		Currency:                 req.Currency,
		Status:                   string(req.Status),
		ConversationID:           req.ConversationID,
		OriginatorConversationID: req.OriginatorConversationID,
		ResultCode:               req.ResultCode,
		ResultDesc:               req.ResultDesc,
		ReceiptNumber:            req.ReceiptNumber,
		RetryCount:               req.RetryCount,
		MaxRetries:               req.MaxRetries,
		NeedsReview:              req.NeedsReview,
		CreatedAt:                req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:                req.UpdatedAt.Format(time.RFC3339),
	}
	if req.NextRetryAt != nil {
		response.NextRetryAt = req.NextRetryAt.Format(time.RFC3339)
	}
	return response
}
