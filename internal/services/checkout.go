package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/HamzaArc/Tontine-app-chat/internal/models"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

// ErrAlreadySettled is returned when the gateway reports the order as paid
// while a new checkout is being initiated.
var ErrAlreadySettled = errors.New("payment already settled at gateway")

type CheckoutService struct {
	db       *gorm.DB
	midtrans *MidtransService
}

func NewCheckoutService(db *gorm.DB, midtrans *MidtransService) *CheckoutService {
	return &CheckoutService{
		db:       db,
		midtrans: midtrans,
	}
}

// CheckActiveSession returns the newest active session for the payment,
// or nil when none exists.
func (s *CheckoutService) CheckActiveSession(paymentID uint) (*models.PaymentSession, error) {
	var existingSession models.PaymentSession
	err := s.db.Where("payment_id = ? AND is_active = ?", paymentID, true).Order("created_at desc").First(&existingSession).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // No active session
		}
		return nil, err
	}
	return &existingSession, nil
}

// CheckoutResult holds the result of an initiation attempt
type CheckoutResult struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
	IsExisting  bool   `json:"is_existing"`
}

// InitiateCheckout starts or resumes a gateway session for a payment.
// The payment must arrive with User and Cycle.Group preloaded.
func (s *CheckoutService) InitiateCheckout(payment *models.Payment, forceNew bool, callbackURL string) (*CheckoutResult, error) {
	// 1. Check for existing active session
	existingSession, err := s.CheckActiveSession(payment.ID)
	if err != nil {
		return nil, err
	}

	if existingSession != nil {
		// active session exists, check status with the gateway
		statusResp, err := s.midtrans.CheckTransaction(existingSession.OrderID)
		if err == nil {
			switch statusResp.TransactionStatus {
			case "settlement", "capture":
				return nil, ErrAlreadySettled

			case "deny", "expire", "cancel", "failure":
				s.deactivate(existingSession)
				// Proceed to create new

			default:
				// Still pending at the gateway
				if forceNew {
					s.midtrans.CancelTransaction(existingSession.OrderID)
					s.deactivate(existingSession)
					// Proceed to create new
				} else {
					// Reuse existing
					var snapResp snap.Response
					if err := json.Unmarshal(existingSession.ResponseMetadata, &snapResp); err == nil {
						return &CheckoutResult{
							Token:       snapResp.Token,
							RedirectURL: snapResp.RedirectURL,
							IsExisting:  true,
						}, nil
					}
					// If unmarshal fails, treat as broken
					s.deactivate(existingSession)
				}
			}
		} else {
			// Check failed, assume session is invalid/broken locally
			s.deactivate(existingSession)
		}
	}

	// 2. Create New Transaction
	orderID := fmt.Sprintf("tontine-%d-%d", payment.ID, time.Now().Unix())
	amount := int64(payment.Amount)

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: payment.User.Name,
			Email: payment.User.Email,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    fmt.Sprintf("cycle-%d", payment.CycleID),
				Name:  fmt.Sprintf("Contribution for %s", payment.Cycle.Group.Name),
				Price: amount,
				Qty:   1,
			},
		},
		Callbacks: &snap.Callbacks{
			Finish: callbackURL,
		},
	}

	resp, err := s.midtrans.CreateTransaction(orderID, amount, req)
	if err != nil {
		return nil, err
	}

	// 3. Create Session Record
	reqBytes, _ := json.Marshal(req)
	respBytes, _ := json.Marshal(resp)

	session := models.PaymentSession{
		PaymentID:        payment.ID,
		UserID:           payment.UserID,
		Gateway:          models.PaymentGatewayMidtrans,
		OrderID:          orderID,
		IsActive:         true,
		RequestMetadata:  reqBytes,
		ResponseMetadata: respBytes,
	}
	if err := s.db.Create(&session).Error; err != nil {
		return nil, err
	}

	return &CheckoutResult{
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
		IsExisting:  false,
	}, nil
}

func (s *CheckoutService) deactivate(session *models.PaymentSession) {
	session.IsActive = false
	if err := s.db.Save(session).Error; err != nil {
		slog.Warn("failed to deactivate payment session",
			"session_id", session.ID, "order_id", session.OrderID, "error", err)
	}
}

// PaymentIDFromOrder extracts the payment ID from an order ID of the form
// "tontine-{paymentID}-{unix}".
func PaymentIDFromOrder(orderID string) (uint, error) {
	parts := strings.Split(orderID, "-")
	if len(parts) != 3 || parts[0] != "tontine" {
		return 0, fmt.Errorf("unrecognized order id %q", orderID)
	}
	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unrecognized order id %q", orderID)
	}
	return uint(id), nil
}
