package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loanspur/paymentvalut-sub005/internal/api/handler"
	"github.com/loanspur/paymentvalut-sub005/internal/api/middleware"
	"github.com/loanspur/paymentvalut-sub005/internal/domain/partner"
)

// Handlers bundles the handlers wired into the router
type Handlers struct {
	Disbursement *handler.DisbursementHandler
	Callback     *handler.CallbackHandler
	Inbound      *handler.InboundHandler
	Wallet       *handler.WalletHandler
	Balance      *handler.BalanceHandler
	C2B          *handler.C2BHandler
}

// setupRouter configures API routes and middleware for the application.
// Partner-facing routes require an API key; gateway-facing webhooks carry
// their own authentication inside the payload (or none, by gateway design)
// and must stay reachable without one.
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	partners partner.Repository,
	h Handlers,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))

	v1 := r.Group("/api/v1")

	// Partner-facing operations, API key required
	authed := v1.Group("", middleware.PartnerAuth(logger, partners))
	{
		disbursements := authed.Group("/disbursements")
		{
			disbursements.POST("", h.Disbursement.Submit)
			disbursements.GET("", h.Disbursement.List)
			disbursements.GET("/:id", h.Disbursement.GetByID)
			disbursements.GET("/:id/retries", h.Disbursement.RetryLog)
			disbursements.POST("/:id/retry", h.Disbursement.Retry)
		}

		wallet := authed.Group("/wallet")
		{
			wallet.GET("", h.Wallet.GetBalance)
			wallet.GET("/transactions", h.Wallet.ListTransactions)
		}
	}

	// Gateway-facing webhooks
	callbacks := v1.Group("/callbacks")
	{
		callbacks.POST("/result", h.Callback.Result)
		callbacks.POST("/timeout", h.Callback.Timeout)
	}
	v1.POST("/c2b/notifications", h.Inbound.Notify)

	// Operator endpoints (dashboard-facing; access control lives upstream)
	v1.POST("/balance-checks", h.Balance.Trigger)
	v1.GET("/balance-checks", h.Balance.List)
	v1.GET("/c2b/transactions", h.C2B.List)
	v1.POST("/c2b/transactions/:id/allocate", h.C2B.Allocate)

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
