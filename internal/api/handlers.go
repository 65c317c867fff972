/**
 * @description
 * This file contains the HTTP handlers for the settlement-service's API
 * endpoints. Handlers parse incoming requests, call the appropriate methods
 * on the application service, and write the HTTP response. Business
 * rejections (insufficient liquidity, unsupported asset, amount below fee)
 * map to 4xx responses; genuine external-service failures map to 502 so
 * callers know a retry may succeed.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - github.com/shopspring/decimal: Request amount parsing.
 * - internal/app, internal/domain: Service logic, models, and sentinel errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridianpay/settlement-service/internal/app"
)

// SettlementHandlers holds the application service that handlers will use.
type SettlementHandlers struct {
	service *app.Service
}

// NewSettlementHandlers creates a new instance of SettlementHandlers.
func NewSettlementHandlers(service *app.Service) *SettlementHandlers {
	return &SettlementHandlers{service: service}
}

// swapRequest is the body for quote and swap endpoints.
type swapRequest struct {
	OwnerWallet    string `json:"owner_wallet,omitempty"`
	AssetToSwap    string `json:"asset_to_swap"`
	Amount         string `json:"amount"`
	AssetToReceive string `json:"asset_to_receive"`
}

// withdrawalRequest is the body for the withdrawal settlement endpoint.
type withdrawalRequest struct {
	Asset       string `json:"asset"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
}

// GetBalancesHandler returns the balance sheet for one owner.
func (h *SettlementHandlers) GetBalancesHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, err := uuid.Parse(chi.URLParam(r, "ownerID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid owner ID format")
		return
	}

	sheet, err := h.service.ComputeBalances(r.Context(), ownerID)
	if err != nil {
		log.Printf("level=error component=api msg=\"balance computation failed\" owner_id=%s err=%v", ownerID, err)
		h.writeError(w, http.StatusBadGateway, "Could not determine balances; please retry")
		return
	}
	h.writeJSON(w, http.StatusOK, sheet)
}

// GetTreasuryBalancesHandler returns the balance sheet for the treasury identity.
func (h *SettlementHandlers) GetTreasuryBalancesHandler(w http.ResponseWriter, r *http.Request) {
	sheet, err := h.service.ComputeTreasuryBalances(r.Context())
	if err != nil {
		log.Printf("level=error component=api msg=\"treasury balance computation failed\" err=%v", err)
		h.writeError(w, http.StatusBadGateway, "Could not determine treasury balances; please retry")
		return
	}
	h.writeJSON(w, http.StatusOK, sheet)
}

// SwapQuoteHandler computes a conversion quote without moving funds.
func (h *SettlementHandlers) SwapQuoteHandler(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := h.decodeSwapRequest(w, r)
	if !ok {
		return
	}

	quote, err := h.service.Quote(r.Context(), req.AssetToSwap, amount, req.AssetToReceive)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, quote)
}

// SwapHandler validates liquidity and executes the two swap legs.
func (h *SettlementHandlers) SwapHandler(w http.ResponseWriter, r *http.Request) {
	req, amount, ok := h.decodeSwapRequest(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.OwnerWallet) == "" {
		h.writeError(w, http.StatusBadRequest, "owner_wallet is required")
		return
	}

	settlement, err := h.service.ExecuteSwap(r.Context(), req.OwnerWallet, req.AssetToSwap, amount, req.AssetToReceive)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, settlement)
}

// WithdrawalHandler settles an outbound transfer with treasury fee skimming.
func (h *SettlementHandlers) WithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Asset) == "" || strings.TrimSpace(req.Source) == "" || strings.TrimSpace(req.Destination) == "" {
		h.writeError(w, http.StatusBadRequest, "asset, source and destination are required")
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || !amount.IsPositive() {
		h.writeError(w, http.StatusBadRequest, "amount must be a positive decimal")
		return
	}

	settlement, err := h.service.SettleWithdrawal(r.Context(), req.Asset, req.Source, req.Destination, amount)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, settlement)
}

func (h *SettlementHandlers) decodeSwapRequest(w http.ResponseWriter, r *http.Request) (swapRequest, decimal.Decimal, bool) {
	var req swapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return req, decimal.Zero, false
	}
	if strings.TrimSpace(req.AssetToSwap) == "" || strings.TrimSpace(req.AssetToReceive) == "" {
		h.writeError(w, http.StatusBadRequest, "asset_to_swap and asset_to_receive are required")
		return req, decimal.Zero, false
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || !amount.IsPositive() {
		h.writeError(w, http.StatusBadRequest, "amount must be a positive decimal")
		return req, decimal.Zero, false
	}
	return req, amount, true
}

// writeServiceError maps the service error taxonomy to HTTP responses.
func (h *SettlementHandlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrUnsupportedAsset):
		h.writeError(w, http.StatusUnprocessableEntity, "Asset is not supported for conversion")
	case errors.Is(err, app.ErrInsufficientLiquidity):
		h.writeError(w, http.StatusConflict, "Treasury cannot currently fulfil this swap")
	case errors.Is(err, app.ErrAmountBelowFee):
		h.writeError(w, http.StatusUnprocessableEntity, "Requested amount does not cover the treasury fee")
	case errors.Is(err, app.ErrPriceUnavailable):
		h.writeError(w, http.StatusBadGateway, "Price reference unavailable; please retry")
	case errors.Is(err, app.ErrSwapIncomplete):
		log.Printf("level=error component=api msg=\"swap incomplete; compensation pending\" err=%v", err)
		h.writeError(w, http.StatusBadGateway, "Swap partially executed; outcome pending reconciliation")
	case errors.Is(err, app.ErrTransferExecution):
		log.Printf("level=error component=api msg=\"transfer execution failed\" err=%v", err)
		h.writeError(w, http.StatusBadGateway, "Transfer execution failed; please retry")
	default:
		log.Printf("level=error component=api msg=\"unexpected service error\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *SettlementHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode response\" err=%v", err)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *SettlementHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
