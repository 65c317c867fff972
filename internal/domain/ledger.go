/**
 * @description
 * This file defines the core domain models for the settlement-service.
 * These structs represent the entities read from the ledger store and the
 * value objects produced by the balance aggregation and swap settlement
 * engines.
 *
 * @notes
 * - Amounts are `decimal.Decimal` (shopspring). The ledger carries
 *   heterogeneous crypto assets with fractional units, and balance rounding
 *   is applied once at the end of aggregation, so integer minor units are
 *   not an option here.
 * - Ledger amounts arrive as free-text strings from upstream transfer
 *   processing and are parsed leniently; an unparsable amount is treated as
 *   absent, not as zero-by-error.
 */

package domain

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger record's movement kind.
type TransactionType string

const (
	TypeOnramp     TransactionType = "onramp"
	TypeOfframp    TransactionType = "offramp"
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeConversion TransactionType = "conversion"
	TypeTransfer   TransactionType = "transfer"
)

// StatusCompleted is the only ledger status that contributes to balances.
// Matching is case-insensitive.
const StatusCompleted = "completed"

// UnknownLabel is the placeholder network/asset label used when a completed
// record does not carry one.
const UnknownLabel = "UNKNOWN"

// LedgerRecord is one immutable row describing a funds movement. Records are
// created by upstream transfer processing and are read-only input here.
type LedgerRecord struct {
	ID                 uuid.UUID       `json:"id"`
	OwnerID            uuid.UUID       `json:"owner_id"`
	TransactionType    TransactionType `json:"transaction_type"`
	Status             string          `json:"status"`
	SourceAsset        string          `json:"source_asset"`
	SourceNetwork      string          `json:"source_network"`
	SourceAmount       string          `json:"source_amount"`
	DestinationAsset   string          `json:"destination_asset"`
	DestinationNetwork string          `json:"destination_network"`
	DestinationAmount  string          `json:"destination_amount"`
	// WalletAddress is only populated for deposits and is used to resolve
	// the network/asset label through a PaymentMethodBinding.
	WalletAddress string `json:"wallet_address,omitempty"`
}

// IsCompleted reports whether the record's free-text status denotes a
// completed movement.
func (r LedgerRecord) IsCompleted() bool {
	return strings.ToLower(strings.TrimSpace(r.Status)) == StatusCompleted
}

// PaymentMethodBinding links a deposit wallet address to the owner that
// registered it, carrying the labels used to classify deposits. One owner
// may hold many bindings; the lookup key is (walletAddress, ownerID).
type PaymentMethodBinding struct {
	WalletAddress string    `json:"wallet_address"`
	OwnerID       uuid.UUID `json:"owner_id"`
	WalletLabel   string    `json:"wallet_label"`
	Rail          string    `json:"rail"`
}

// BalanceSheet is the per-network, per-asset view folded from the ledger.
// BalanceTotal equals the sum of all signed contributions, rounded to two
// decimal places at the end of the fold.
type BalanceSheet struct {
	BalanceTotal decimal.Decimal                       `json:"balance_total"`
	Balances     map[string]map[string]decimal.Decimal `json:"balances"`
}

// NewBalanceSheet returns an empty balance sheet with an initialized map.
func NewBalanceSheet() *BalanceSheet {
	return &BalanceSheet{
		BalanceTotal: decimal.Zero,
		Balances:     make(map[string]map[string]decimal.Decimal),
	}
}

// ParseAmount leniently parses a free-text ledger amount. The second return
// value reports whether a usable numeric value was present.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// NormalizeLabel upper-cases a network/asset label, substituting
// UnknownLabel when it is blank.
func NormalizeLabel(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UnknownLabel
	}
	return strings.ToUpper(trimmed)
}
