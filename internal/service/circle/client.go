package circle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/flowsend/flowsend/backend/internal/config"
	model "github.com/flowsend/flowsend/backend/internal/model/circle"
)

// ErrNotConfigured signals that ledger credentials are absent; callers must
// report a structured "not configured" response instead of attempting calls.
var ErrNotConfigured = errors.New("circle api is not configured")

// APIError carries a provider failure with the message text extracted from
// its JSON body, preserved verbatim for debuggability.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client is the dependency-injected REST client for the Circle ledger.
// Configuration is resolved once at construction and held as owned state.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient validates configuration eagerly and returns a ready client.
func NewClient(cfg config.CircleConfig) (*Client, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// dataEnvelope mirrors the provider's {"data": ...} response wrapping.
type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	zap.L().Debug("circle api request",
		zap.String("method", method),
		zap.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("circle api request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read circle api response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: extractErrorMessage(raw, resp.StatusCode)}
	}

	if out == nil {
		return nil
	}

	var envelope dataEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Data == nil {
		// Some endpoints respond without the data envelope.
		return json.Unmarshal(raw, out)
	}
	return json.Unmarshal(envelope.Data, out)
}

// extractErrorMessage pulls the provider's message field out of an error
// body, falling back to the raw text.
func extractErrorMessage(raw []byte, status int) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if len(raw) > 0 {
		return string(raw)
	}
	return fmt.Sprintf("circle api error: %d", status)
}

// GetConfiguration probes the API connection.
func (c *Client) GetConfiguration(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/v1/configuration", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListBankAccounts returns the wire bank accounts on file.
func (c *Client) ListBankAccounts(ctx context.Context) ([]model.BankAccount, error) {
	var out []model.BankAccount
	if err := c.do(ctx, http.MethodGet, "/v1/banks/wires", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BankAccountParams describes a wire bank account to link.
type BankAccountParams struct {
	IdempotencyKey string
	AccountNumber  string
	RoutingNumber  string
	HolderName     string
	Line1          string
	City           string
	District       string
	PostalCode     string
	Country        string
	BankName       string
}

// CreateBankAccount links a new wire bank account. A fresh idempotency key
// is generated when the caller supplies none, so client-driven retries with
// the same key never create duplicates.
func (c *Client) CreateBankAccount(ctx context.Context, p BankAccountParams) (*model.BankAccount, error) {
	if p.IdempotencyKey == "" {
		p.IdempotencyKey = uuid.NewString()
	}
	if p.Country == "" {
		p.Country = "US"
	}
	if p.BankName == "" {
		p.BankName = "Bank"
	}

	body := map[string]any{
		"idempotencyKey": p.IdempotencyKey,
		"accountNumber":  p.AccountNumber,
		"routingNumber":  p.RoutingNumber,
		"billingDetails": map[string]string{
			"name":       p.HolderName,
			"line1":      p.Line1,
			"city":       p.City,
			"district":   p.District,
			"postalCode": p.PostalCode,
			"country":    p.Country,
		},
		"bankAddress": map[string]string{
			"bankName": p.BankName,
			"line1":    p.Line1,
			"city":     p.City,
			"district": p.District,
			"country":  p.Country,
		},
	}

	var out model.BankAccount
	if err := c.do(ctx, http.MethodPost, "/v1/banks/wires", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WireInstructions fetches the deposit instructions for a linked account.
func (c *Client) WireInstructions(ctx context.Context, bankAccountID string) (map[string]any, error) {
	var out map[string]any
	path := fmt.Sprintf("/v1/banks/wires/%s/instructions", bankAccountID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PayoutParams describes a withdrawal to a linked bank account.
type PayoutParams struct {
	IdempotencyKey string
	Amount         decimal.Decimal
	BankAccountID  string
}

// CreatePayout initiates a wire payout from the master wallet.
func (c *Client) CreatePayout(ctx context.Context, p PayoutParams) (*model.Payout, error) {
	if p.IdempotencyKey == "" {
		p.IdempotencyKey = uuid.NewString()
	}

	body := map[string]any{
		"idempotencyKey": p.IdempotencyKey,
		"source": map[string]string{
			"type": "wallet",
			"id":   "master",
		},
		"destination": map[string]string{
			"type": "wire",
			"id":   p.BankAccountID,
		},
		"amount": model.Amount{Amount: p.Amount.String(), Currency: "USD"},
	}

	var out model.Payout
	if err := c.do(ctx, http.MethodPost, "/v1/payouts", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPayout fetches the status of a prior payout by provider id.
func (c *Client) GetPayout(ctx context.Context, payoutID string) (*model.Payout, error) {
	var out model.Payout
	if err := c.do(ctx, http.MethodGet, "/v1/payouts/"+payoutID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRecipientAddresses returns the verified blockchain recipients.
func (c *Client) ListRecipientAddresses(ctx context.Context) ([]model.RecipientAddress, error) {
	var out []model.RecipientAddress
	if err := c.do(ctx, http.MethodGet, "/v1/addressBook/recipients", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RecipientParams describes a blockchain recipient to verify.
type RecipientParams struct {
	IdempotencyKey string
	Address        string
	Chain          string
	Currency       string
	Description    string
}

// CreateRecipientAddress registers a blockchain address for transfers.
func (c *Client) CreateRecipientAddress(ctx context.Context, p RecipientParams) (*model.RecipientAddress, error) {
	if p.IdempotencyKey == "" {
		p.IdempotencyKey = uuid.NewString()
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}

	body := map[string]any{
		"idempotencyKey": p.IdempotencyKey,
		"address":        p.Address,
		"chain":          p.Chain,
		"currency":       p.Currency,
		"description":    p.Description,
	}

	var out model.RecipientAddress
	if err := c.do(ctx, http.MethodPost, "/v1/addressBook/recipients", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TransferParams describes a ledger-to-chain transfer to a verified
// recipient. AddressID is the provider-issued recipient id, forwarded
// unmodified.
type TransferParams struct {
	IdempotencyKey string
	AddressID      string
	Amount         decimal.Decimal
}

// CreateTransfer moves funds from the master wallet to a verified address.
func (c *Client) CreateTransfer(ctx context.Context, p TransferParams) (*model.Transfer, error) {
	if p.IdempotencyKey == "" {
		p.IdempotencyKey = uuid.NewString()
	}

	body := map[string]any{
		"idempotencyKey": p.IdempotencyKey,
		"source": map[string]string{
			"type": "wallet",
			"id":   "master",
		},
		"destination": map[string]string{
			"type":      "verified_blockchain",
			"addressId": p.AddressID,
		},
		"amount": model.Amount{Amount: p.Amount.String(), Currency: "USD"},
	}

	var out model.Transfer
	if err := c.do(ctx, http.MethodPost, "/v1/transfers", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateBlockchainAddress provisions a hosted deposit address.
func (c *Client) CreateBlockchainAddress(ctx context.Context, currency, chain string) (*model.DepositAddress, error) {
	body := map[string]any{
		"idempotencyKey": uuid.NewString(),
		"currency":       currency,
		"chain":          chain,
	}

	var out model.DepositAddress
	if err := c.do(ctx, http.MethodPost, "/v1/wallets/addresses/deposit", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListBlockchainAddresses returns the hosted deposit addresses.
func (c *Client) ListBlockchainAddresses(ctx context.Context) ([]model.DepositAddress, error) {
	var out []model.DepositAddress
	if err := c.do(ctx, http.MethodGet, "/v1/wallets/addresses/deposit", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBalances returns the ledger account balances.
func (c *Client) GetBalances(ctx context.Context) (*model.Balance, error) {
	var out model.Balance
	if err := c.do(ctx, http.MethodGet, "/v1/balances", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
