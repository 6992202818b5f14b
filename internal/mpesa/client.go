// Package mpesa implements the HTTP client for the mobile money gateway's
// B2C and account balance APIs.
package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/loanspur/paymentvalut-sub005/internal/config"
)

// ErrGatewayUnavailable indicates the gateway could not be reached or
// answered with a server error. The outcome of the request is unknown, so
// callers must not treat it as a rejection.
var ErrGatewayUnavailable = errors.New("gateway unavailable")

const (
	oauthPath   = "/oauth/v1/generate?grant_type=client_credentials"
	b2cPath     = "/mpesa/b2c/v1/paymentrequest"
	balancePath = "/mpesa/accountbalance/v1/query"

	commandBusinessPayment = "BusinessPayment"
	commandAccountBalance  = "AccountBalance"

	// Shortcode identifier type for balance queries
	identifierTypeShortCode = "4"

	tokenExpirySlack = 30 * time.Second
)

// Client talks to the mobile money gateway. It caches the OAuth token until
// shortly before expiry and refreshes it on demand.
type Client struct {
	cfg        *config.GatewayConfig
	httpClient *http.Client
	logger     *slog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a gateway client from configuration
func NewClient(logger *slog.Logger, cfg *config.GatewayConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: logger,
	}
}

// SendB2C submits a business payment to the given msisdn. The occasion is
// echoed back in the asynchronous result callback and carries the
// disbursement ID for matching. Amount is in minor currency units.
func (c *Client) SendB2C(ctx context.Context, msisdn string, amount int64, remarks, occasion string) (*GatewayResponse, error) {
	req := &B2CRequest{
		InitiatorName:      c.cfg.InitiatorName,
		SecurityCredential: c.cfg.SecurityCredential,
		CommandID:          commandBusinessPayment,
		Amount:             minorToMajor(amount),
		PartyA:             c.cfg.ShortCode,
		PartyB:             msisdn,
		Remarks:            remarks,
		QueueTimeOutURL:    c.cfg.TimeoutURL,
		ResultURL:          c.cfg.ResultURL,
		Occasion:           occasion,
	}

	return c.post(ctx, b2cPath, req)
}

// QueryAccountBalance submits an account balance query for the configured
// short code. The balances arrive asynchronously on the result URL.
func (c *Client) QueryAccountBalance(ctx context.Context) (*GatewayResponse, error) {
	req := &AccountBalanceRequest{
		Initiator:          c.cfg.InitiatorName,
		SecurityCredential: c.cfg.SecurityCredential,
		CommandID:          commandAccountBalance,
		PartyA:             c.cfg.ShortCode,
		IdentifierType:     identifierTypeShortCode,
		Remarks:            "balance check",
		QueueTimeOutURL:    c.cfg.TimeoutURL,
		ResultURL:          c.cfg.ResultURL,
	}

	return c.post(ctx, balancePath, req)
}

func (c *Client) post(ctx context.Context, path string, payload any) (*GatewayResponse, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode gateway request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Gateway request failed", "path", path, "error", err)
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		c.logger.Error("Gateway returned server error", "path", path, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	var gr GatewayResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	return &gr, nil
}

// token returns a cached OAuth access token, fetching a fresh one when the
// cached token is missing or about to expire.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+oauthPath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	httpReq.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Token request failed", "error", err)
		return "", c.transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= http.StatusInternalServerError {
			return "", fmt.Errorf("%w: token status %d", ErrGatewayUnavailable, resp.StatusCode)
		}
		return "", fmt.Errorf("token request rejected: status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("token response missing access token")
	}

	ttl := time.Hour
	if secs, err := strconv.Atoi(tr.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}

	c.accessToken = tr.AccessToken
	c.tokenExpiry = time.Now().Add(ttl - tokenExpirySlack)

	return c.accessToken, nil
}

// transportError maps timeouts and connection failures to
// ErrGatewayUnavailable so callers can classify the outcome as unknown.
func (c *Client) transportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	// Connection refused, DNS failure and the like
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}

// minorToMajor renders an amount in minor units as the whole-unit string the
// gateway expects. Fractional amounts are not supported by the B2C API, so
// the cent remainder must be zero by the time a request reaches the client.
func minorToMajor(amount int64) string {
	return strconv.FormatInt(amount/100, 10)
}
