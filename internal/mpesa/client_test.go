package mpesa

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanspur/paymentvalut-sub005/internal/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newGatewayConfig(baseURL string) *config.GatewayConfig {
	return &config.GatewayConfig{
		BaseURL:            baseURL,
		ConsumerKey:        "consumer-key",
		ConsumerSecret:     "consumer-secret",
		InitiatorName:      "testapi",
		SecurityCredential: "encrypted-credential",
		ShortCode:          "600986",
		ResultURL:          "https://example.com/api/v1/callbacks/result",
		TimeoutURL:         "https://example.com/api/v1/callbacks/timeout",
		RequestTimeout:     2 * time.Second,
	}
}

func TestClient_SendB2C(t *testing.T) {
	ctx := context.Background()
	log := newTestLogger()

	var tokenCalls atomic.Int32
	var mu sync.Mutex
	var occasions []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			tokenCalls.Add(1)
			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "consumer-key", user)
			assert.Equal(t, "consumer-secret", pass)
			json.NewEncoder(w).Encode(map[string]string{
				"access_token": "test-token",
				"expires_in":   "3599",
			})
		case "/mpesa/b2c/v1/paymentrequest":
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

			var req B2CRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "BusinessPayment", req.CommandID)
			assert.Equal(t, "1500", req.Amount) // 150000 minor units
			assert.Equal(t, "600986", req.PartyA)
			assert.Equal(t, "254712345678", req.PartyB)
			mu.Lock()
			occasions = append(occasions, req.Occasion)
			mu.Unlock()

			json.NewEncoder(w).Encode(GatewayResponse{
				ConversationID:           "AG_20260829_1234",
				OriginatorConversationID: "OC_5678",
				ResponseCode:             "0",
				ResponseDescription:      "Accept the service request successfully.",
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(log, newGatewayConfig(server.URL))

	resp, err := client.SendB2C(ctx, "254712345678", 150000, "loan disbursement", "disb-123")
	require.NoError(t, err)
	assert.True(t, resp.Accepted())
	assert.Equal(t, "AG_20260829_1234", resp.ConversationID)
	assert.Equal(t, "OC_5678", resp.OriginatorConversationID)

	// Second call reuses the cached token
	_, err = client.SendB2C(ctx, "254712345678", 150000, "loan disbursement", "disb-124")
	require.NoError(t, err)
	assert.Equal(t, int32(1), tokenCalls.Load())
	assert.Equal(t, []string{"disb-123", "disb-124"}, occasions)
}

func TestClient_SendB2C_Rejection(t *testing.T) {
	ctx := context.Background()
	log := newTestLogger()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "t", "expires_in": "3599"})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(GatewayResponse{
			RequestID:    "req-1",
			ErrorCode:    "400.002.02",
			ErrorMessage: "Bad Request - Invalid PartyB",
		})
	}))
	defer server.Close()

	client := NewClient(log, newGatewayConfig(server.URL))

	resp, err := client.SendB2C(ctx, "0712345678", 150000, "loan disbursement", "disb-125")
	require.NoError(t, err)
	assert.False(t, resp.Accepted())
	assert.Equal(t, "400.002.02", resp.Code())
	assert.Equal(t, "Bad Request - Invalid PartyB", resp.Description())
}

func TestClient_SendB2C_ServerError(t *testing.T) {
	ctx := context.Background()
	log := newTestLogger()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "t", "expires_in": "3599"})
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(log, newGatewayConfig(server.URL))

	resp, err := client.SendB2C(ctx, "254712345678", 150000, "loan disbursement", "disb-126")
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestClient_SendB2C_Unreachable(t *testing.T) {
	ctx := context.Background()
	log := newTestLogger()

	// Closed server, connection refused
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(log, newGatewayConfig(server.URL))

	resp, err := client.SendB2C(ctx, "254712345678", 150000, "loan disbursement", "disb-127")
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestClient_QueryAccountBalance(t *testing.T) {
	ctx := context.Background()
	log := newTestLogger()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "t", "expires_in": "3599"})
		case "/mpesa/accountbalance/v1/query":
			var req AccountBalanceRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "AccountBalance", req.CommandID)
			assert.Equal(t, "600986", req.PartyA)
			assert.Equal(t, "4", req.IdentifierType)

			json.NewEncoder(w).Encode(GatewayResponse{
				ConversationID:           "AG_20260829_9999",
				OriginatorConversationID: "OC_9999",
				ResponseCode:             "0",
				ResponseDescription:      "Accept the service request successfully.",
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(log, newGatewayConfig(server.URL))

	resp, err := client.QueryAccountBalance(ctx)
	require.NoError(t, err)
	assert.True(t, resp.Accepted())
	assert.Equal(t, "AG_20260829_9999", resp.ConversationID)
}
