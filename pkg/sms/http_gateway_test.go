package sms

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPGateway(t *testing.T) {
	config := HTTPConfig{
		APIURL:   "https://sms.example.in/api/v2",
		Username: "testuser",
		Password: "testpass",
		SenderID: "RNTWHL",
	}

	gateway := NewHTTPGateway(config)

	assert.NotNil(t, gateway)
	assert.Equal(t, config.APIURL, gateway.apiURL)
	assert.Equal(t, config.Username, gateway.username)
	assert.Equal(t, config.SenderID, gateway.senderID)
	assert.NotNil(t, gateway.client)
	assert.Equal(t, "HTTP SMS Gateway", gateway.GetName())
}

func TestHTTPGatewaySend(t *testing.T) {
	var logins int
	var sent SendSMSRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			logins++
			_ = json.NewEncoder(w).Encode(LoginResponse{Status: "success", Token: "tok-1", Expiration: 3600})
		case "/sms":
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			body, _ := io.ReadAll(r.Body)
			assert.NoError(t, json.Unmarshal(body, &sent))
			_ = json.NewEncoder(w).Encode(SendSMSResponse{Status: "success"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	gateway := NewHTTPGateway(HTTPConfig{APIURL: server.URL, Username: "u", Password: "p", SenderID: "RNTWHL"})

	id, err := gateway.Send(context.Background(), "98765 43210", "Your trip has started")
	require.NoError(t, err)
	assert.NotZero(t, id)
	require.Len(t, sent.Recipients, 1)
	assert.Equal(t, "+919876543210", sent.Recipients[0].Mobile)
	assert.Equal(t, "RNTWHL", sent.SenderID)

	_, err = gateway.Send(context.Background(), "9876543210", "Second message")
	require.NoError(t, err)
	assert.Equal(t, 1, logins, "token is reused until it nears expiry")
}

func TestHTTPGatewaySend_Errors(t *testing.T) {
	t.Run("Invalid Phone", func(t *testing.T) {
		gateway := NewHTTPGateway(HTTPConfig{APIURL: "http://127.0.0.1:1"})
		_, err := gateway.Send(context.Background(), "12345", "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to format phone number")
	})

	t.Run("Login Rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(LoginResponse{Status: "failed", Comment: "bad credentials", ErrCode: "104"})
		}))
		defer server.Close()

		gateway := NewHTTPGateway(HTTPConfig{APIURL: server.URL})
		_, err := gateway.Send(context.Background(), "9876543210", "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad credentials")
	})

	t.Run("Send Rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/login" {
				_ = json.NewEncoder(w).Encode(LoginResponse{Status: "success", Token: "t", Expiration: 3600})
				return
			}
			_ = json.NewEncoder(w).Encode(SendSMSResponse{Status: "failed", Comment: "insufficient credit", ErrCode: "2001"})
		}))
		defer server.Close()

		gateway := NewHTTPGateway(HTTPConfig{APIURL: server.URL})
		_, err := gateway.Send(context.Background(), "9876543210", "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insufficient credit")
	})

	t.Run("Non 200 Status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		gateway := NewHTTPGateway(HTTPConfig{APIURL: server.URL})
		_, err := gateway.Send(context.Background(), "9876543210", "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 502")
	})
}

func TestLogGateway(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	var gateway Gateway = NewLogGateway(logger)
	id, err := gateway.Send(context.Background(), "9876543210", "hello")
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, "Log Gateway", gateway.GetName())
}
