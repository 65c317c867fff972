/**
 * @description
 * This package provides a client for the custody/transfer-execution
 * platform. It encapsulates the logic for making authenticated HTTP
 * requests to the custody API, handling request body construction, and
 * parsing responses.
 *
 * The custody platform is the authority for wallet holdings (the treasury
 * wallet's asset list is fetched live, never derived from the ledger) and is
 * the collaborator that actually moves funds. Transfer execution returns an
 * opaque free-text status string; classifying it is the caller's concern.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 * - internal/domain: TreasuryAsset and TransferInstruction models.
 */
package custodyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/meridianpay/settlement-service/internal/domain"
	"github.com/shopspring/decimal"
)

// Client is a client for the custody API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new custody API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// transferRequest is the payload for a transfer-execution call.
type transferRequest struct {
	Data struct {
		AssetID     string          `json:"assetId"`
		Source      string          `json:"source"`
		Destination string          `json:"destination"`
		Amount      decimal.Decimal `json:"amount"`
	} `json:"data"`
}

// TransferResult is the custody platform's answer to a transfer instruction.
// Status is free text; observed values include "AWAITING_SIGNATURE",
// "SIGNED_PENDING_BROADCAST", "COMPLETED" and "FAILED".
type TransferResult struct {
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

// walletAssetsResponse wraps the asset listing for one wallet.
type walletAssetsResponse struct {
	Data []domain.TreasuryAsset `json:"data"`
}

// ErrorResponse represents an error from the custody API.
type ErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Status string `json:"status"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("custody api error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown custody api error"
}

// ExecuteTransfer sends one transfer instruction to the custody platform.
func (c *Client) ExecuteTransfer(ctx context.Context, instruction domain.TransferInstruction) (*TransferResult, error) {
	reqPayload := transferRequest{}
	reqPayload.Data.AssetID = instruction.AssetID
	reqPayload.Data.Source = instruction.FromWallet
	reqPayload.Data.Destination = instruction.ToWallet
	reqPayload.Data.Amount = instruction.Amount

	bodyBytes, err := c.do(ctx, http.MethodPost, "/v1/transfers", reqPayload, "transfer")
	if err != nil {
		return nil, err
	}

	var result TransferResult
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to decode transfer response: %w", err)
	}
	return &result, nil
}

// ListWalletAssets fetches the live asset holdings for a wallet.
func (c *Client) ListWalletAssets(ctx context.Context, walletID string) ([]domain.TreasuryAsset, error) {
	bodyBytes, err := c.do(ctx, http.MethodGet, "/v1/wallets/"+walletID+"/assets", nil, "list_wallet_assets")
	if err != nil {
		return nil, err
	}

	var assets walletAssetsResponse
	if err := json.Unmarshal(bodyBytes, &assets); err != nil {
		return nil, fmt.Errorf("failed to decode wallet assets response: %w", err)
	}
	return assets.Data, nil
}

// do executes one request against the custody API and returns the raw body
// for 2xx responses, or a typed error for everything else.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}, op string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		marshaled, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reqBody = bytes.NewBuffer(marshaled)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-custody-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s request: %w", op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=custody_client op=%s status=%d msg=\"non-2xx response (unparsable error body)\"", op, resp.StatusCode)
			return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=custody_client op=%s status=%d title=%q detail=%q", op, resp.StatusCode, firstErrorTitle(errResp), firstErrorDetail(errResp))
		return nil, &errResp
	}

	return bodyBytes, nil
}

func firstErrorTitle(resp ErrorResponse) string {
	if len(resp.Errors) == 0 {
		return ""
	}
	return resp.Errors[0].Title
}

func firstErrorDetail(resp ErrorResponse) string {
	if len(resp.Errors) == 0 {
		return ""
	}
	return resp.Errors[0].Detail
}
