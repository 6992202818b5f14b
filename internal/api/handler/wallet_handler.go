package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loanspur/paymentvalut-sub005/internal/api/middleware"
	"github.com/loanspur/paymentvalut-sub005/internal/api/service"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/wallet"
)

// WalletHandler handles HTTP requests for partner wallet queries
type WalletHandler struct {
	walletService service.WalletService
	logger        *slog.Logger
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(logger *slog.Logger, walletService service.WalletService) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		logger:        logger,
	}
}

// GetBalance retrieves the authenticated partner's wallet balance
func (h *WalletHandler) GetBalance(c *gin.Context) {
	p, ok := middleware.GetPartner(c)
	if !ok {
		RespondWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	w, err := h.walletService.GetWallet(c.Request.Context(), p.ID)
	if err != nil {
		h.logger.Error("Failed to get wallet", "partner_id", p.ID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, WalletResponse{
		PartnerID: w.PartnerID.String(),
		Balance:   w.Balance,
		Currency:  w.Currency,
		UpdatedAt: w.UpdatedAt.Format(time.RFC3339),
	})
}

// ListTransactions retrieves the paginated ledger history for the
// authenticated partner's wallet
func (h *WalletHandler) ListTransactions(c *gin.Context) {
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

	transactions, total, err := h.walletService.ListTransactions(c.Request.Context(), p.ID, pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to list wallet transactions", "partner_id", p.ID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]WalletTransactionResponse, 0, len(transactions))
	for _, trx := range transactions {
		responses = append(responses, mapWalletTransactionToResponse(trx))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, pagination.Page, pagination.PerPage, int(total))
}

// mapWalletTransactionToResponse maps a ledger entry to its response DTO
func mapWalletTransactionToResponse(trx *wallet.Transaction) WalletTransactionResponse {
	return WalletTransactionResponse{
		ID:           trx.ID,
		Type:         trx.Type,
		Amount:       trx.Amount,
		BalanceAfter: trx.BalanceAfter,
		Reference:    trx.Reference,
		Description:  trx.Description,
		CreatedAt:    trx.CreatedAt.Format(time.RFC3339),
	}
}
