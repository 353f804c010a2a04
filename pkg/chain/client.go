package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmoralesdev/contentmint-backend/pkg/config"
	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
	"github.com/rmoralesdev/contentmint-backend/pkg/logger"
)

var (
	errBaseURLRequired = errors.New("custody base url is required")
	errAPIKeyRequired  = errors.New("custody api key is required")
	errWalletRequired  = errors.New("platform wallet address is required")
	errLoggerRequired  = errors.New("chain logger is required")
)

// Client exposes the custodial payment rail with centralized auth, logging,
// idempotency, and error mapping. Transaction construction and signing happen
// inside the custody service; this client only sees success or failure.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	network        string
	token          string
	platformWallet string
	logger         *logger.Logger
}

// TransferRequest describes a single custodial disbursement.
type TransferRequest struct {
	From           string          `json:"from"`
	To             string          `json:"to"`
	Amount         decimal.Decimal `json:"amount"`
	Token          string          `json:"token"`
	Network        string          `json:"network"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// TransferResult carries the rail's outcome for one transfer. Raw preserves
// the provider response verbatim for the audit trail.
type TransferResult struct {
	TxHash  string          `json:"tx_hash"`
	Success bool            `json:"success"`
	Raw     json.RawMessage `json:"-"`
}

// NewClient initializes the custody wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.ChainConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.CustodyBaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	apiKey := strings.TrimSpace(cfg.CustodyAPIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	wallet := strings.TrimSpace(cfg.PlatformWallet)
	if wallet == "" {
		return nil, errWalletRequired
	}

	c := &Client{
		httpClient:     &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:        baseURL,
		apiKey:         apiKey,
		network:        cfg.Network,
		token:          cfg.Token,
		platformWallet: wallet,
		logger:         logg,
	}

	logg.Info(ctx, "chain custody client initialized")
	return c, nil
}

// Network returns the configured settlement network.
func (c *Client) Network() string {
	if c == nil {
		return ""
	}
	return c.network
}

// Token returns the configured settlement token symbol.
func (c *Client) Token() string {
	if c == nil {
		return ""
	}
	return c.token
}

// PlatformWallet returns the custodial wallet disbursements are paid from.
func (c *Client) PlatformWallet() string {
	if c == nil {
		return ""
	}
	return c.platformWallet
}

type balanceResponse struct {
	Account string          `json:"account"`
	Token   string          `json:"token"`
	Network string          `json:"network"`
	Balance decimal.Decimal `json:"balance"`
}

// GetBalance reads the token balance for the given account on the configured network.
func (c *Client) GetBalance(ctx context.Context, account, token, network string) (decimal.Decimal, error) {
	if strings.TrimSpace(account) == "" {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "account address required")
	}

	endpoint := fmt.Sprintf("%s/v1/accounts/%s/balance?token=%s&network=%s", c.baseURL, account, token, network)
	body, err := c.do(ctx, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return decimal.Zero, err
	}

	var parsed balanceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode balance response")
	}
	return parsed.Balance, nil
}

type transferResponse struct {
	TxHash  string `json:"tx_hash"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Transfer executes a custodial transfer. A response with success=false is
// returned as a typed transfer error so every failure path looks the same to
// the settlement step.
func (c *Client) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if strings.TrimSpace(req.To) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer recipient required")
	}
	if !req.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer amount must be positive")
	}
	if req.From == "" {
		req.From = c.platformWallet
	}
	if req.Token == "" {
		req.Token = c.token
	}
	if req.Network == "" {
		req.Network = c.network
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode transfer request")
	}

	endpoint := c.baseURL + "/v1/transfers"
	body, err := c.do(ctx, http.MethodPost, endpoint, payload, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	var parsed transferResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode transfer response")
	}

	result := &TransferResult{
		TxHash:  parsed.TxHash,
		Success: parsed.Success,
		Raw:     json.RawMessage(body),
	}
	if !parsed.Success {
		reason := parsed.Error
		if reason == "" {
			reason = "transfer rejected by rail"
		}
		return result, pkgerrors.New(pkgerrors.CodeTransferFailed, reason)
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, idempotencyKey string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build custody request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "custody request failed")
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && c.logger != nil {
			c.logger.Warn(ctx, "failed closing custody response body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read custody response")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		msg := fmt.Sprintf("custody responded %d", resp.StatusCode)
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, msg).WithDetails(map[string]any{"body": string(body)})
		}
		return nil, pkgerrors.New(pkgerrors.CodeTransferFailed, msg).WithDetails(map[string]any{"body": string(body)})
	}
	return body, nil
}
