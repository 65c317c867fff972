/**
 * @description
 * Swap conversion and liquidity validation, plus the two-leg swap
 * execution. Conversion goes through the USD pivot: both symbols are mapped
 * to price-reference identifiers through a fixed table, priced in USD in a
 * single query, and cross-rated. No direct-pair pricing and no caching —
 * prices are live market data.
 *
 * Execution holds the per-treasury-asset lock across the liquidity check
 * and both transfer legs. Leg one moves the client's asset into the
 * treasury; leg two pays out the converted amount from the treasury. A
 * failed or unconfirmed leg one blocks leg two. If leg one moved funds and
 * leg two then fails, a compensation event is published and the caller gets
 * ErrSwapIncomplete — the shortfall is always recorded somewhere.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianpay/settlement-service/internal/domain"
	"github.com/meridianpay/settlement-service/pkg/rabbitmq"
)

// priceReferenceIDs is the closed table mapping exchange symbols to
// price-reference identifiers. A symbol outside this table cannot be
// swapped.
var priceReferenceIDs = map[string]string{
	"SOL":  "solana",
	"USDC": "usd-coin",
	"USDT": "tether",
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"BONK": "bonk",
}

func referenceIDFor(symbol string) (string, error) {
	id, ok := priceReferenceIDs[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAsset, symbol)
	}
	return id, nil
}

// Convert computes how much of assetToReceive the given amount of
// assetToSwap is worth, cross-rated through their independent USD prices.
func (s *Service) Convert(ctx context.Context, assetToSwap string, amount decimal.Decimal, assetToReceive string) (decimal.Decimal, error) {
	swapID, err := referenceIDFor(assetToSwap)
	if err != nil {
		return decimal.Zero, err
	}
	receiveID, err := referenceIDFor(assetToReceive)
	if err != nil {
		return decimal.Zero, err
	}

	prices, err := s.prices.GetUSDPrices(ctx, []string{swapID, receiveID})
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}

	swapPrice, ok := prices[swapID]
	if !ok || swapPrice.USD.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: no usd price for %s", ErrPriceUnavailable, swapID)
	}
	receivePrice, ok := prices[receiveID]
	if !ok || receivePrice.USD.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: no usd price for %s", ErrPriceUnavailable, receiveID)
	}

	return amount.Mul(swapPrice.USD).Div(receivePrice.USD), nil
}

// CanSwap reports whether the treasury currently holds enough of
// assetToReceive to honor the swap, along with the converted amount it
// would pay out. A missing treasury holding is a legitimate "cannot
// currently fulfil" outcome, not an error.
func (s *Service) CanSwap(ctx context.Context, assetToSwap string, amount decimal.Decimal, assetToReceive string) (bool, decimal.Decimal, error) {
	converted, err := s.Convert(ctx, assetToSwap, amount, assetToReceive)
	if err != nil {
		return false, decimal.Zero, err
	}

	assets, err := s.custody.ListWalletAssets(ctx, s.treasuryID)
	if err != nil {
		return false, decimal.Zero, fmt.Errorf("failed to list treasury assets: %w", err)
	}

	wallet := domain.TreasuryWallet{WalletID: s.treasuryID, Assets: assets}
	holding, ok := wallet.FindAsset(strings.ToUpper(strings.TrimSpace(assetToReceive)))
	if !ok {
		return false, converted, nil
	}
	return holding.AvailableValue.GreaterThanOrEqual(converted), converted, nil
}

// Quote computes a swap quote without touching the treasury.
func (s *Service) Quote(ctx context.Context, assetToSwap string, amount decimal.Decimal, assetToReceive string) (*domain.SwapQuote, error) {
	converted, err := s.Convert(ctx, assetToSwap, amount, assetToReceive)
	if err != nil {
		return nil, err
	}
	return &domain.SwapQuote{
		AssetToSwap:     strings.ToUpper(strings.TrimSpace(assetToSwap)),
		AssetToReceive:  strings.ToUpper(strings.TrimSpace(assetToReceive)),
		RequestedAmount: amount,
		ConvertedAmount: converted,
	}, nil
}

// ExecuteSwap validates liquidity and issues the two swap legs. The
// per-asset lock is held from the liquidity check through both legs so a
// concurrent swap against the same treasury asset waits for this one's
// outflow to be issued.
func (s *Service) ExecuteSwap(ctx context.Context, ownerWallet, assetToSwap string, amount decimal.Decimal, assetToReceive string) (*domain.SwapSettlement, error) {
	assetToSwap = strings.ToUpper(strings.TrimSpace(assetToSwap))
	assetToReceive = strings.ToUpper(strings.TrimSpace(assetToReceive))

	unlock := s.lockTreasuryAsset(assetToReceive)
	defer unlock()

	allowed, converted, err := s.CanSwap(ctx, assetToSwap, amount, assetToReceive)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrInsufficientLiquidity
	}

	quote := domain.SwapQuote{
		AssetToSwap:     assetToSwap,
		AssetToReceive:  assetToReceive,
		RequestedAmount: amount,
		ConvertedAmount: converted,
	}

	// Leg 1: client wallet -> treasury.
	legIn := domain.TransferInstruction{
		AssetID:    assetToSwap,
		FromWallet: ownerWallet,
		ToWallet:   s.treasuryAddress,
		Amount:     amount,
	}
	legInResult, err := s.custody.ExecuteTransfer(ctx, legIn)
	if err != nil {
		return nil, fmt.Errorf("%w: swap leg 1: %v", ErrTransferExecution, err)
	}
	legInStatus := domain.ParseTransferStatus(legInResult.Data.Status)
	if legInStatus == domain.TransferStatusFailed {
		return nil, fmt.Errorf("%w: swap leg 1 rejected with status %q", ErrTransferExecution, legInResult.Data.Status)
	}

	// Leg 2: treasury -> client wallet. From here on the client's funds
	// have moved, so any failure must leave a compensation record.
	legOut := domain.TransferInstruction{
		AssetID:    assetToReceive,
		FromWallet: s.treasuryAddress,
		ToWallet:   ownerWallet,
		Amount:     converted,
	}
	legOutResult, err := s.custody.ExecuteTransfer(ctx, legOut)
	if err != nil {
		s.publishSwapCompensation(ownerWallet, legIn, legInResult.Data.Status, assetToReceive, converted, err)
		return nil, fmt.Errorf("%w: %v", ErrSwapIncomplete, err)
	}
	legOutStatus := domain.ParseTransferStatus(legOutResult.Data.Status)
	if legOutStatus == domain.TransferStatusFailed {
		s.publishSwapCompensation(ownerWallet, legIn, legInResult.Data.Status, assetToReceive, converted,
			fmt.Errorf("leg 2 rejected with status %q", legOutResult.Data.Status))
		return nil, fmt.Errorf("%w: second leg rejected", ErrSwapIncomplete)
	}

	settlement := &domain.SwapSettlement{
		Quote:     quote,
		LegInRaw:  legInResult.Data.Status,
		LegOutRaw: legOutResult.Data.Status,
		LegIn:     legInStatus,
		LegOut:    legOutStatus,
	}

	if s.events != nil {
		event := rabbitmq.SwapSettledEvent{
			OwnerWallet:     ownerWallet,
			AssetToSwap:     assetToSwap,
			AssetToReceive:  assetToReceive,
			RequestedAmount: amount,
			ConvertedAmount: converted,
			LegInStatus:     legInResult.Data.Status,
			LegOutStatus:    legOutResult.Data.Status,
			Timestamp:       time.Now().UTC(),
		}
		if pubErr := s.events.Publish(ctx, rabbitmq.SettlementExchange, "swap.settled", event); pubErr != nil {
			log.Printf("level=warn component=swap msg=\"failed to publish swap settled event\" owner_wallet=%s err=%v", ownerWallet, pubErr)
		}
	}

	return settlement, nil
}

// publishSwapCompensation records a half-executed swap for reconciliation.
// Publishing is best-effort here but loudly logged; the returned
// ErrSwapIncomplete already forces the caller to treat the swap as pending.
func (s *Service) publishSwapCompensation(ownerWallet string, legIn domain.TransferInstruction, legInRawStatus, assetToReceive string, amountOwed decimal.Decimal, cause error) {
	log.Printf("level=error component=swap msg=\"swap second leg failed; compensation required\" owner_wallet=%s asset_owed=%s amount_owed=%s err=%v",
		ownerWallet, assetToReceive, amountOwed, cause)

	if s.events == nil {
		return
	}

	// The request context may already be cancelled; the compensation record
	// must still go out.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	event := rabbitmq.SwapCompensationEvent{
		OwnerWallet:    ownerWallet,
		LegIn:          legIn,
		LegInStatus:    legInRawStatus,
		AssetToReceive: assetToReceive,
		AmountOwed:     amountOwed,
		Reason:         cause.Error(),
		Timestamp:      time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, rabbitmq.SettlementExchange, "swap.compensation_required", event); err != nil {
		log.Printf("level=error component=swap msg=\"failed to publish compensation event\" owner_wallet=%s err=%v", ownerWallet, err)
	}
}
