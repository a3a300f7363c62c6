package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rentwheels/carshare-backend/internal/config"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var paisePerRupee = decimal.NewFromInt(100)

// OrderGateway creates payment orders and checks callback signatures
type OrderGateway interface {
	CreateOrder(ctx context.Context, params CreateOrderParams) (*GatewayOrder, error)
	VerifySignature(orderID, paymentID, signature string) bool
	KeyID() string
}

// CreateOrderParams describes an order to open with the gateway
type CreateOrderParams struct {
	Amount  decimal.Decimal // rupees
	Receipt string
	Notes   map[string]string
}

// GatewayOrder is the gateway's view of a created order
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"` // paise
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// razorpayOrderRequest is the body of POST /v1/orders
type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// RazorpayService talks to the Razorpay orders API
type RazorpayService struct {
	config *config.PaymentConfig
	logger *logrus.Logger
	client *http.Client
}

// NewRazorpayService creates a new Razorpay client
func NewRazorpayService(cfg *config.PaymentConfig, logger *logrus.Logger) *RazorpayService {
	return &RazorpayService{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// KeyID returns the public key id the checkout widget needs
func (s *RazorpayService) KeyID() string {
	return s.config.KeyID
}

// ToPaise converts a rupee amount to the gateway's minor unit
func ToPaise(amount decimal.Decimal) int64 {
	return amount.Mul(paisePerRupee).Round(0).IntPart()
}

// CreateOrder opens an order for the amount
func (s *RazorpayService) CreateOrder(ctx context.Context, params CreateOrderParams) (*GatewayOrder, error) {
	if s.config.KeyID == "" || s.config.KeySecret == "" {
		return nil, fmt.Errorf("payment gateway not configured: missing key credentials")
	}
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("order amount must be positive")
	}

	currency := s.config.Currency
	if currency == "" {
		currency = "INR"
	}
	request := razorpayOrderRequest{
		Amount:   ToPaise(params.Amount),
		Currency: currency,
		Receipt:  params.Receipt,
		Notes:    params.Notes,
	}

	jsonBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimRight(s.config.APIURL, "/") + "/v1/orders"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(s.config.KeyID, s.config.KeySecret)

	s.logger.WithFields(logrus.Fields{
		"receipt":  request.Receipt,
		"amount":   request.Amount,
		"currency": request.Currency,
	}).Info("Creating Razorpay order")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).Error("Failed to call Razorpay")
		return nil, fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var gwErr razorpayErrorResponse
		if json.Unmarshal(body, &gwErr) == nil && gwErr.Error.Description != "" {
			return nil, fmt.Errorf("payment gateway returned status %d: %s", resp.StatusCode, gwErr.Error.Description)
		}
		return nil, fmt.Errorf("payment gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	var order GatewayOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("payment gateway returned no order id")
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"receipt":  order.Receipt,
	}).Info("Razorpay order created")

	return &order, nil
}

// Signature computes the callback signature for an order and payment
func (s *RazorpayService) Signature(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(s.config.KeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a checkout callback in constant time
func (s *RazorpayService) VerifySignature(orderID, paymentID, signature string) bool {
	if s.config.KeySecret == "" || signature == "" {
		return false
	}
	expected := s.Signature(orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
