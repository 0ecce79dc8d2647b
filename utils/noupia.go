package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gadar/bestrong/config"
)

// NoupiaClient talks to the Noupia mobile-money gateway. All calls carry the
// vendor headers (developer key, product key, signature, version) and a
// bounded timeout; retry is left to the payment status machine, which makes
// re-submission idempotent.
type NoupiaClient struct {
	baseURL    string
	apiKey     string
	productKey string
	signature  string
	httpClient *http.Client
}

// NoupiaResponse is the gateway's uniform envelope.
type NoupiaResponse struct {
	Response string      `json:"response"`
	Code     string      `json:"code"`
	Message  string      `json:"message"`
	Data     *NoupiaData `json:"data,omitempty"`
}

// NoupiaData carries transaction details on success.
type NoupiaData struct {
	Transaction string `json:"transaction"`
	Type        string `json:"type"`
	Status      string `json:"status"` // successful | failed | pending
	Amount      string `json:"amount"`
	Fee         string `json:"fee"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
	Method      string `json:"method"`
	Payer       string `json:"payer"`
	Country     string `json:"country"`
	Timestamp   int64  `json:"timestamp"`
}

// NewNoupiaClient builds a client from configuration.
func NewNoupiaClient(cfg config.AppConfig) *NoupiaClient {
	return &NoupiaClient{
		baseURL:    cfg.NoupiaBaseURL,
		apiKey:     cfg.NoupiaAPIKey,
		productKey: cfg.NoupiaProductKey,
		signature:  cfg.NoupiaSignature,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Initiate starts a mobile-money collection for the given payer phone.
func (c *NoupiaClient) Initiate(ctx context.Context, reference, payerPhone string, amount int, currency string) (*NoupiaResponse, error) {
	return c.call(ctx, map[string]any{
		"operation": "initiate",
		"reference": reference,
		"amount":    amount,
		"currency":  currency,
		"phone":     payerPhone,
	})
}

// Verify fetches the current status of a transaction.
func (c *NoupiaClient) Verify(ctx context.Context, transaction string) (*NoupiaResponse, error) {
	return c.call(ctx, map[string]any{
		"operation":   "verify",
		"transaction": transaction,
	})
}

func (c *NoupiaClient) call(ctx context.Context, payload map[string]any) (*NoupiaResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pay", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "BE-STRONG-APP/1.0")
	req.Header.Set("Noupia-API-Signature", c.signature)
	req.Header.Set("Noupia-API-Key", c.apiKey)
	req.Header.Set("Noupia-Product-Key", c.productKey)
	req.Header.Set("Noupia-API-Version", "1.0")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("noupia call: %w", err)
	}
	defer resp.Body.Close()

	var out NoupiaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("noupia decode: %w", err)
	}
	return &out, nil
}
