package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rentwheels/carshare-backend/pkg/validator"
)

// HTTPGateway sends SMS through a bearer-token JSON API
type HTTPGateway struct {
	apiURL   string
	username string
	password string
	senderID string
	client   *http.Client
	phones   *validator.PhoneValidator

	token       string
	tokenMutex  sync.RWMutex
	tokenExpiry time.Time
}

// HTTPConfig holds configuration for the HTTP SMS gateway
type HTTPConfig struct {
	APIURL   string
	Username string
	Password string
	SenderID string
}

// NewHTTPGateway creates a new HTTP SMS gateway client
func NewHTTPGateway(config HTTPConfig) *HTTPGateway {
	return &HTTPGateway{
		apiURL:   config.APIURL,
		username: config.Username,
		password: config.Password,
		senderID: config.SenderID,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		phones: validator.NewPhoneValidator(),
	}
}

// LoginRequest represents the login request structure
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents the login response structure
type LoginResponse struct {
	Status     string `json:"status"`
	Comment    string `json:"comment"`
	Token      string `json:"token"`
	Expiration int    `json:"expiration"` // seconds
	ErrCode    string `json:"errCode"`
}

// SMSRecipient represents a single SMS recipient
type SMSRecipient struct {
	Mobile string `json:"mobile"`
}

// SendSMSRequest represents the SMS sending request structure
type SendSMSRequest struct {
	Recipients    []SMSRecipient `json:"msisdn"`
	Message       string         `json:"message"`
	SenderID      string         `json:"sourceAddress,omitempty"`
	TransactionID int64          `json:"transaction_id"`
}

// SendSMSResponse represents the SMS sending response structure
type SendSMSResponse struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
	ErrCode string `json:"errCode"`
}

// login retrieves a fresh access token
func (g *HTTPGateway) login(ctx context.Context) error {
	body, err := json.Marshal(LoginRequest{Username: g.username, Password: g.password})
	if err != nil {
		return fmt.Errorf("failed to marshal login request: %w", err)
	}

	var loginResp LoginResponse
	if err := g.post(ctx, "/login", "", body, &loginResp); err != nil {
		return fmt.Errorf("failed to log in to SMS gateway: %w", err)
	}
	if loginResp.Status != "success" {
		return fmt.Errorf("login failed: %s (error code: %s)", loginResp.Comment, loginResp.ErrCode)
	}

	g.tokenMutex.Lock()
	g.token = loginResp.Token
	g.tokenExpiry = time.Now().Add(time.Duration(loginResp.Expiration) * time.Second)
	g.tokenMutex.Unlock()

	return nil
}

// currentToken returns a token valid for at least five more minutes
func (g *HTTPGateway) currentToken(ctx context.Context) (string, error) {
	g.tokenMutex.RLock()
	token, expiry := g.token, g.tokenExpiry
	g.tokenMutex.RUnlock()

	if token != "" && time.Now().Before(expiry.Add(-5*time.Minute)) {
		return token, nil
	}
	if err := g.login(ctx); err != nil {
		return "", err
	}

	g.tokenMutex.RLock()
	defer g.tokenMutex.RUnlock()
	return g.token, nil
}

// Send delivers a message to one mobile number
func (g *HTTPGateway) Send(ctx context.Context, phone, message string) (int64, error) {
	mobile, err := g.phones.E164(phone)
	if err != nil {
		return 0, fmt.Errorf("failed to format phone number: %w", err)
	}

	token, err := g.currentToken(ctx)
	if err != nil {
		return 0, err
	}

	transactionID := time.Now().UnixMicro()
	body, err := json.Marshal(SendSMSRequest{
		Recipients:    []SMSRecipient{{Mobile: mobile}},
		Message:       message,
		SenderID:      g.senderID,
		TransactionID: transactionID,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	var smsResp SendSMSResponse
	if err := g.post(ctx, "/sms", token, body, &smsResp); err != nil {
		return 0, err
	}
	if smsResp.Status != "success" {
		return 0, fmt.Errorf("SMS sending failed: %s (error code: %s)", smsResp.Comment, smsResp.ErrCode)
	}

	return transactionID, nil
}

func (g *HTTPGateway) post(ctx context.Context, path, token string, payload []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SMS gateway returned status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// GetName returns the name of this SMS gateway
func (g *HTTPGateway) GetName() string {
	return "HTTP SMS Gateway"
}
