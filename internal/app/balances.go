/**
 * @description
 * Balance aggregation engine. Folds the heterogeneous, append-only
 * transaction ledger into a per-network, per-asset balance sheet using
 * type-specific sign and classification rules.
 *
 * Classification rules:
 * - onramp: credits the destination side.
 * - offramp: debits the source side.
 * - deposit: credits the network/asset labels resolved through the owner's
 *   payment-method binding for the record's wallet address; a deposit with
 *   no binding (or no wallet address) contributes nothing. Deposit amounts
 *   arrive in micro-units and are scaled down by 1e6.
 * - withdrawal/conversion/transfer: classified for visibility but carry
 *   sign zero — they never move the computed balance.
 *
 * Rounding to two decimal places happens once, after the whole fold, never
 * per record.
 */

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridianpay/settlement-service/internal/domain"
)

// microUnitScale divides deposit amounts recorded in base-10 micro-units
// (6-decimal assets).
var microUnitScale = decimal.NewFromInt(1_000_000)

// bindingKey is the lookup key for a payment-method binding.
type bindingKey struct {
	walletAddress string
	ownerID       uuid.UUID
}

// ComputeBalances folds the owner's full ledger into a balance sheet. A
// failed ledger or binding read propagates as an error; callers must not
// mistake "could not determine balance" for "zero balance".
func (s *Service) ComputeBalances(ctx context.Context, ownerID uuid.UUID) (*domain.BalanceSheet, error) {
	records, err := s.repo.ListLedgerRecordsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger for owner %s: %w", ownerID, err)
	}

	bindings, err := s.repo.ListPaymentMethodBindingsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read payment method bindings for owner %s: %w", ownerID, err)
	}

	return foldBalanceSheet(records, indexBindings(bindings)), nil
}

// ComputeTreasuryBalances folds every ledger record touching the treasury
// wallet. The treasury holds no payment-method bindings, so deposit rows
// without one contribute nothing, per the standard rules.
func (s *Service) ComputeTreasuryBalances(ctx context.Context) (*domain.BalanceSheet, error) {
	records, err := s.repo.ListLedgerRecordsByWallet(ctx, s.treasuryAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger for treasury wallet: %w", err)
	}
	return foldBalanceSheet(records, map[bindingKey]domain.PaymentMethodBinding{}), nil
}

func indexBindings(bindings []domain.PaymentMethodBinding) map[bindingKey]domain.PaymentMethodBinding {
	index := make(map[bindingKey]domain.PaymentMethodBinding, len(bindings))
	for _, b := range bindings {
		index[bindingKey{walletAddress: b.WalletAddress, ownerID: b.OwnerID}] = b
	}
	return index
}

// contribution is one classified ledger record: where it lands on the sheet
// and with what signed weight.
type contribution struct {
	network string
	asset   string
	amount  decimal.Decimal
	sign    int64
}

// foldBalanceSheet accumulates signed contributions and rounds once at the
// end.
func foldBalanceSheet(records []domain.LedgerRecord, bindings map[bindingKey]domain.PaymentMethodBinding) *domain.BalanceSheet {
	sheet := domain.NewBalanceSheet()
	total := decimal.Zero

	for _, rec := range records {
		if !rec.IsCompleted() {
			continue
		}

		c, ok := classifyRecord(rec, bindings)
		if !ok {
			continue
		}

		perNetwork, exists := sheet.Balances[c.network]
		if !exists {
			perNetwork = make(map[string]decimal.Decimal)
			sheet.Balances[c.network] = perNetwork
		}

		signed := c.amount.Mul(decimal.NewFromInt(c.sign))
		perNetwork[c.asset] = perNetwork[c.asset].Add(signed)
		total = total.Add(signed)
	}

	for network, perNetwork := range sheet.Balances {
		for asset, amount := range perNetwork {
			sheet.Balances[network][asset] = amount.Round(2)
		}
	}
	sheet.BalanceTotal = total.Round(2)
	return sheet
}

// classifyRecord maps one completed record onto the balance sheet. The
// second return value is false when the record contributes nothing at all
// (an unmatched deposit).
func classifyRecord(rec domain.LedgerRecord, bindings map[bindingKey]domain.PaymentMethodBinding) (contribution, bool) {
	switch rec.TransactionType {
	case domain.TypeOnramp:
		amount, _ := domain.ParseAmount(rec.DestinationAmount)
		return contribution{
			network: domain.NormalizeLabel(rec.DestinationNetwork),
			asset:   domain.NormalizeLabel(rec.DestinationAsset),
			amount:  amount,
			sign:    1,
		}, true

	case domain.TypeOfframp:
		amount, _ := domain.ParseAmount(rec.SourceAmount)
		return contribution{
			network: domain.NormalizeLabel(rec.SourceNetwork),
			asset:   domain.NormalizeLabel(rec.SourceAsset),
			amount:  amount,
			sign:    -1,
		}, true

	case domain.TypeDeposit:
		if rec.WalletAddress == "" {
			return contribution{}, false
		}
		binding, ok := bindings[bindingKey{walletAddress: rec.WalletAddress, ownerID: rec.OwnerID}]
		if !ok {
			log.Printf("level=warn component=balances msg=\"deposit has no payment method binding; skipping\" owner_id=%s wallet=%s", rec.OwnerID, rec.WalletAddress)
			return contribution{}, false
		}
		amount, _ := domain.ParseAmount(rec.DestinationAmount)
		return contribution{
			network: domain.NormalizeLabel(binding.Rail),
			asset:   domain.NormalizeLabel(binding.WalletLabel),
			amount:  amount.Div(microUnitScale),
			sign:    1,
		}, true

	default:
		// withdrawal, conversion, transfer: tracked for visibility, zero
		// weight on every balance.
		network := rec.SourceNetwork
		asset := rec.SourceAsset
		if network == "" {
			network = rec.DestinationNetwork
		}
		if asset == "" {
			asset = rec.DestinationAsset
		}
		amount, ok := domain.ParseAmount(rec.SourceAmount)
		if !ok {
			amount, _ = domain.ParseAmount(rec.DestinationAmount)
		}
		return contribution{
			network: domain.NormalizeLabel(network),
			asset:   domain.NormalizeLabel(asset),
			amount:  amount,
			sign:    0,
		}, true
	}
}
