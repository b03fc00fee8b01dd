package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client verifies transactions against the Flutterwave API using the
// secret key. Client-supplied amounts and statuses are never trusted; this
// server-to-server lookup is the only source of truth.
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

func NewClient(secretKey string) *Client {
	return &Client{
		BaseURL:   "https://api.flutterwave.com/v3",
		SecretKey: secretKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// VerifyResponse is the gateway's verification envelope. Status is the
// envelope-level outcome ("success"); Data carries the transaction itself.
type VerifyResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    Transaction `json:"data"`
}

type Transaction struct {
	ID       json.Number `json:"id"`
	TxRef    string      `json:"tx_ref"`
	Amount   float64     `json:"amount"`
	Currency string      `json:"currency"`
	Status   string      `json:"status"` // "successful" when paid
}

// VerifyTransaction fetches the authoritative record for a gateway
// transaction id. The raw body is returned alongside the parsed envelope
// so callers can persist it for audit even when parsing fails.
func (c *Client) VerifyTransaction(ctx context.Context, gatewayTxID string) (*VerifyResponse, []byte, error) {
	url := fmt.Sprintf("%s/transactions/%s/verify", c.BaseURL, gatewayTxID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.SecretKey))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	var verifyResp VerifyResponse
	if err := json.Unmarshal(respBody, &verifyResp); err != nil {
		return nil, respBody, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &verifyResp, respBody, nil
}
