package services

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

type MidtransService struct {
	SnapClient snap.Client
	CoreClient coreapi.Client
	serverKey  string
}

func NewMidtransService() *MidtransService {
	serverKey := os.Getenv("MIDTRANS_SERVER_KEY")
	clientKey := os.Getenv("MIDTRANS_CLIENT_KEY")
	envStr := os.Getenv("MIDTRANS_IS_PRODUCTION")

	env := midtrans.Sandbox
	if envStr == "true" {
		env = midtrans.Production
	}

	var s snap.Client
	s.New(serverKey, env)

	var c coreapi.Client
	c.New(serverKey, env)

	// Set Default Options
	midtrans.ServerKey = serverKey
	midtrans.ClientKey = clientKey
	midtrans.Environment = env

	return &MidtransService{
		SnapClient: s,
		CoreClient: c,
		serverKey:  serverKey,
	}
}

// Configured reports whether a server key is present. Checkout endpoints
// return an error when the gateway is not configured.
func (s *MidtransService) Configured() bool {
	return s.serverKey != ""
}

// CreateTransaction creates a Snap transaction and returns the redirect URL and token
func (s *MidtransService) CreateTransaction(orderID string, amount int64, param *snap.Request) (*snap.Response, error) {
	// If param is nil, create a basic request
	if param == nil {
		param = &snap.Request{
			TransactionDetails: midtrans.TransactionDetails{
				OrderID:  orderID,
				GrossAmt: amount,
			},
		}
	} else {
		// Ensure OrderID and Amount are set if passed explicitly
		if param.TransactionDetails.OrderID == "" {
			param.TransactionDetails.OrderID = orderID
		}
		if param.TransactionDetails.GrossAmt == 0 {
			param.TransactionDetails.GrossAmt = amount
		}
	}

	resp, midErr := s.SnapClient.CreateTransaction(param)
	if midErr != nil {
		return nil, fmt.Errorf("midtrans create transaction: %w", midErr)
	}

	return resp, nil
}

// CheckTransaction fetches the current gateway status for an order.
func (s *MidtransService) CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, error) {
	resp, midErr := s.CoreClient.CheckTransaction(orderID)
	if midErr != nil {
		return nil, fmt.Errorf("midtrans check transaction: %w", midErr)
	}
	return resp, nil
}

// CancelTransaction voids a still-pending order at the gateway.
func (s *MidtransService) CancelTransaction(orderID string) error {
	_, midErr := s.CoreClient.CancelTransaction(orderID)
	if midErr != nil {
		return fmt.Errorf("midtrans cancel transaction: %w", midErr)
	}
	return nil
}

// VerifySignature checks a notification's signature_key field.
// Signature = SHA512(order_id + status_code + gross_amount + server key).
func (s *MidtransService) VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + s.serverKey))
	return hex.EncodeToString(sum[:]) == signatureKey
}
