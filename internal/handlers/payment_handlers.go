package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"clipper_app_echo/internal/models"
	"clipper_app_echo/internal/services"
)

// PaymentHandler exposes checkout, the billing view and the gateway webhook.
type PaymentHandler struct {
	db       *gorm.DB
	payments *services.PaymentService
}

func NewPaymentHandler(db *gorm.DB, payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{db: db, payments: payments}
}

// Checkout opens a pending payment for the requested credit pack and returns
// the gateway's hosted checkout link for the client to redirect to.
func (h *PaymentHandler) Checkout(c echo.Context) error {
	user, err := currentUser(c, h.db)
	if err != nil {
		return err
	}

	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}

	payment, err := h.payments.CreateCheckout(c.Request().Context(), user, req.PriceID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidPriceID):
			return echo.NewHTTPError(http.StatusBadRequest, "Unknown price id")
		case errors.Is(err, services.ErrGatewayUnavailable):
			log.Printf("checkout failed for user %d: %v", user.ID, err)
			return echo.NewHTTPError(http.StatusBadGateway, "Failed to create payment link")
		default:
			c.Logger().Error(err)
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to start checkout")
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"order_id":     payment.OrderID,
		"redirect_url": payment.SnapRedirectURL,
	})
}

// Billing reconciles the user's open payments against the gateway, then
// returns the payment history and current credit balance. The sync is best
// effort: a failure only means statuses stay stale until the next view.
func (h *PaymentHandler) Billing(c echo.Context) error {
	user, err := currentUser(c, h.db)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if err := h.payments.SyncUserPayments(ctx, user.ID); err != nil {
		log.Printf("billing: sync failed for user %d: %v", user.ID, err)
	}

	var payments []models.Payment
	if err := h.db.WithContext(ctx).
		Where("user_id = ?", user.ID).
		Order("created_at desc").
		Find(&payments).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch payments")
	}

	// Re-read the balance: the sync may have just credited it.
	if err := h.db.WithContext(ctx).First(user, user.ID).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch balance")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"credits":  user.Credits,
		"payments": payments,
	})
}

// MidtransWebhook handles the gateway's server-to-server payment
// notifications.
func (h *PaymentHandler) MidtransWebhook(c echo.Context) error {
	var n services.GatewayNotification
	if err := c.Bind(&n); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid JSON payload"})
	}

	status, changed, err := h.payments.HandleNotification(c.Request().Context(), n)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidPayload),
			errors.Is(err, services.ErrUnknownTransactionStatus):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid Midtrans payload"})
		case errors.Is(err, services.ErrInvalidSignature):
			log.Printf("webhook: invalid signature for order %s", n.OrderID)
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
		case errors.Is(err, services.ErrPaymentNotFound):
			// Expected for test/replay notifications; log and move on.
			log.Printf("webhook: payment not found for order %s", n.OrderID)
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Payment not found"})
		default:
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		}
	}

	if !changed {
		return c.JSON(http.StatusOK, map[string]string{"message": "Status unchanged"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Webhook processed successfully",
		"status":  status,
	})
}
