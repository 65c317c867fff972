/**
 * @description
 * Treasury and settlement value objects. The treasury wallet is the single
 * shared custodial wallet used as counterparty for all client swaps and as
 * the fee-collection destination. Its asset list is fetched live from the
 * custody collaborator and is the authority for liquidity checks; it is
 * never derived from the ledger.
 */

package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TreasuryAsset is one holding inside the treasury wallet as reported by the
// custody collaborator.
type TreasuryAsset struct {
	AssetSymbol    string          `json:"assetSymbol"`
	AvailableValue decimal.Decimal `json:"availableValue"`
}

// TreasuryWallet is the custody collaborator's live view of the shared
// treasury wallet.
type TreasuryWallet struct {
	WalletID string          `json:"wallet_id"`
	Assets   []TreasuryAsset `json:"assets"`
}

// FindAsset returns the holding for the given symbol, if present.
func (w TreasuryWallet) FindAsset(symbol string) (TreasuryAsset, bool) {
	for _, a := range w.Assets {
		if a.AssetSymbol == symbol {
			return a, true
		}
	}
	return TreasuryAsset{}, false
}

// SwapQuote is the computed (never persisted) result of a cross-asset price
// conversion through the USD pivot.
type SwapQuote struct {
	AssetToSwap     string          `json:"asset_to_swap"`
	AssetToReceive  string          `json:"asset_to_receive"`
	RequestedAmount decimal.Decimal `json:"requested_amount"`
	ConvertedAmount decimal.Decimal `json:"converted_amount"`
}

// TransferInstruction is the unit of work sent to the transfer-execution
// collaborator.
type TransferInstruction struct {
	AssetID    string          `json:"asset_id"`
	FromWallet string          `json:"from_wallet"`
	ToWallet   string          `json:"to_wallet"`
	Amount     decimal.Decimal `json:"amount"`
}

// TransferStatus is the closed status taxonomy parsed from the
// transfer-execution collaborator's free-text status. Anything that cannot
// be classified is Unknown, and Unknown must never trigger follow-up money
// movement.
type TransferStatus string

const (
	TransferStatusAwaiting  TransferStatus = "awaiting"
	TransferStatusSigned    TransferStatus = "signed"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusFailed    TransferStatus = "failed"
	TransferStatusUnknown   TransferStatus = "unknown"
)

// ParseTransferStatus classifies the collaborator's opaque status string.
// The AWAITING/SIGNED tokens are matched case-sensitively; those are the
// exact spellings the collaborator emits for in-flight transfers.
func ParseTransferStatus(raw string) TransferStatus {
	switch {
	case strings.Contains(raw, "AWAITING"):
		return TransferStatusAwaiting
	case strings.Contains(raw, "SIGNED"):
		return TransferStatusSigned
	case strings.EqualFold(strings.TrimSpace(raw), "COMPLETED"):
		return TransferStatusCompleted
	case strings.EqualFold(strings.TrimSpace(raw), "FAILED"):
		return TransferStatusFailed
	default:
		return TransferStatusUnknown
	}
}

// InFlight reports whether the status denotes a transfer that has been
// accepted but not finalized. The withdrawal fee leg fires only for
// in-flight primaries.
func (s TransferStatus) InFlight() bool {
	return s == TransferStatusAwaiting || s == TransferStatusSigned
}

// SwapSettlement reports the outcome of a two-leg swap.
type SwapSettlement struct {
	Quote     SwapQuote      `json:"quote"`
	LegInRaw  string         `json:"leg_in_status"`
	LegOutRaw string         `json:"leg_out_status"`
	LegIn     TransferStatus `json:"leg_in"`
	LegOut    TransferStatus `json:"leg_out"`
}

// WithdrawalSettlement reports the outcome of an outbound transfer with fee
// skimming. FeeStatus is nil when no fee leg was issued for this call.
type WithdrawalSettlement struct {
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	PrimaryStatus string          `json:"primary_status"`
	FeeStatus     *string         `json:"fee_status,omitempty"`
}
