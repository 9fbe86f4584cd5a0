package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/HamzaArc/Tontine-app-chat/internal/metrics"
	"github.com/HamzaArc/Tontine-app-chat/internal/models"
	"github.com/HamzaArc/Tontine-app-chat/internal/services"
)

type PaymentHandler struct {
	db       *gorm.DB
	checkout *services.CheckoutService
	midtrans *services.MidtransService
}

func NewPaymentHandler(db *gorm.DB, checkout *services.CheckoutService, midtrans *services.MidtransService) *PaymentHandler {
	return &PaymentHandler{db: db, checkout: checkout, midtrans: midtrans}
}

// getEnv reads an environment variable with a fallback.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MarkPaid settles a payment by hand. The payer or a group admin may call it.
// PaidAt is always overwritten, so repeated calls move the timestamp forward.
func (h *PaymentHandler) MarkPaid(c echo.Context) error {
	paymentID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var payment models.Payment
	if err := h.db.Preload("Cycle").First(&payment, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "payment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch payment")
	}

	caller := callerID(c)
	if caller != payment.UserID {
		if _, err := requireAdmin(h.db, caller, payment.Cycle.GroupID); err != nil {
			return err
		}
	}

	now := time.Now()
	payment.Paid = true
	payment.PaidAt = &now
	payment.Gateway = models.PaymentGatewayManual

	if err := h.db.Save(&payment).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update payment")
	}

	metrics.PaymentsMarkedPaid.WithLabelValues(string(models.PaymentGatewayManual)).Inc()

	return c.JSON(http.StatusOK, payment)
}

// ListForCycle returns all payments of a cycle with nested user and cycle
// projections. Any member of the cycle's group may read them.
func (h *PaymentHandler) ListForCycle(c echo.Context) error {
	cycleID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var cycle models.Cycle
	if err := h.db.First(&cycle, cycleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "cycle not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch cycle")
	}

	if _, err := requireMember(h.db, callerID(c), cycle.GroupID); err != nil {
		return err
	}

	var payments []models.Payment
	if err := h.db.Preload("User").Preload("Cycle").Where("cycle_id = ?", cycle.ID).Order("id asc").Find(&payments).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch payments")
	}

	return c.JSON(http.StatusOK, payments)
}

// Checkout starts or resumes an online payment for the caller's own unpaid
// payment and returns the gateway token and redirect URL. Pass force_new=true
// to abandon a pending session and open a fresh one.
func (h *PaymentHandler) Checkout(c echo.Context) error {
	paymentID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var payment models.Payment
	if err := h.db.Preload("User").Preload("Cycle.Group").First(&payment, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "payment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch payment")
	}

	if callerID(c) != payment.UserID {
		return echo.NewHTTPError(http.StatusForbidden, "you can only pay your own payment")
	}
	if payment.Paid {
		return echo.NewHTTPError(http.StatusBadRequest, "payment is already paid")
	}
	if h.midtrans == nil || !h.midtrans.Configured() {
		return echo.NewHTTPError(http.StatusInternalServerError, "payment gateway not configured")
	}

	forceNew := c.QueryParam("force_new") == "true"
	callbackURL := getEnv("APP_URL", "http://localhost:8080") + "/payments/" + payment.UUID

	result, err := h.checkout.InitiateCheckout(&payment, forceNew, callbackURL)
	if err != nil {
		if errors.Is(err, services.ErrAlreadySettled) {
			return echo.NewHTTPError(http.StatusBadRequest, "payment is already settled at the gateway")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to initiate checkout")
	}

	outcome := "new"
	if result.IsExisting {
		outcome = "existing"
	}
	metrics.CheckoutsInitiated.WithLabelValues(outcome).Inc()

	return c.JSON(http.StatusOK, result)
}

type midtransNotification struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	FraudStatus       string `json:"fraud_status"`
}

// MidtransWebhook receives asynchronous status notifications from the
// gateway. Without a configured server key no signature can be verified, so
// the endpoint refuses to process anything. The raw payload is archived
// before parsing so disputes can be replayed. A settlement marks the payment
// paid once and releases its session; terminal failures only release the
// session.
func (h *PaymentHandler) MidtransWebhook(c echo.Context) error {
	if h.midtrans == nil || !h.midtrans.Configured() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "payment gateway not configured")
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read body")
	}

	history := models.PaymentCallbackHistory{
		Gateway:  models.PaymentGatewayMidtrans,
		Metadata: body,
	}
	if err := h.db.Create(&history).Error; err != nil {
		slog.Error("failed to archive gateway callback", "error", err)
	}

	var notif midtransNotification
	if err := json.Unmarshal(body, &notif); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid notification payload")
	}

	if !h.midtrans.VerifySignature(notif.OrderID, notif.StatusCode, notif.GrossAmount, notif.SignatureKey) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	metrics.WebhooksReceived.WithLabelValues(notif.TransactionStatus).Inc()

	paymentID, err := services.PaymentIDFromOrder(notif.OrderID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unrecognized order id")
	}

	var payment models.Payment
	if err := h.db.First(&payment, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "payment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch payment")
	}

	switch notif.TransactionStatus {
	case "settlement", "capture":
		if notif.TransactionStatus == "capture" && notif.FraudStatus == "challenge" {
			// Keep the session open until fraud review resolves.
			return c.JSON(http.StatusOK, map[string]string{"message": "ok"})
		}

		wasPaid := payment.Paid
		err = h.db.Transaction(func(tx *gorm.DB) error {
			if !wasPaid {
				now := time.Now()
				payment.Paid = true
				payment.PaidAt = &now
				payment.Gateway = models.PaymentGatewayMidtrans
				if err := tx.Save(&payment).Error; err != nil {
					return err
				}
			}
			return tx.Model(&models.PaymentSession{}).
				Where("order_id = ?", notif.OrderID).
				Update("is_active", false).Error
		})
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to settle payment")
		}
		if !wasPaid {
			metrics.PaymentsMarkedPaid.WithLabelValues(string(models.PaymentGatewayMidtrans)).Inc()
		}

	case "deny", "expire", "cancel", "failure":
		if err := h.db.Model(&models.PaymentSession{}).
			Where("order_id = ?", notif.OrderID).
			Update("is_active", false).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to release session")
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "ok"})
}
