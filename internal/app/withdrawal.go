/**
 * @description
 * Treasury fee settlement for the withdrawal path. An outbound transfer is
 * split into the primary leg (requested amount minus the flat fee) and a
 * conditional fee leg into the treasury. The fee leg fires only when the
 * transfer-execution platform reports the primary as in flight (awaiting
 * signature or signed); an unrecognized status means "unknown, do not act"
 * and is left for reconciliation rather than guessed at.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianpay/settlement-service/internal/domain"
	"github.com/meridianpay/settlement-service/pkg/rabbitmq"
)

// SettleWithdrawal issues the primary outbound transfer and, when the
// primary is reported in flight, the flat fee leg into the treasury.
func (s *Service) SettleWithdrawal(ctx context.Context, asset, source, destination string, requestedAmount decimal.Decimal) (*domain.WithdrawalSettlement, error) {
	if requestedAmount.LessThanOrEqual(s.withdrawalFee) {
		return nil, fmt.Errorf("%w: requested %s, fee %s", ErrAmountBelowFee, requestedAmount, s.withdrawalFee)
	}

	amountTransfer := requestedAmount.Sub(s.withdrawalFee)

	primary := domain.TransferInstruction{
		AssetID:    asset,
		FromWallet: source,
		ToWallet:   destination,
		Amount:     amountTransfer,
	}
	primaryResult, err := s.custody.ExecuteTransfer(ctx, primary)
	if err != nil {
		return nil, fmt.Errorf("%w: withdrawal primary leg: %v", ErrTransferExecution, err)
	}

	settlement := &domain.WithdrawalSettlement{
		Amount:        amountTransfer,
		Fee:           s.withdrawalFee,
		PrimaryStatus: primaryResult.Data.Status,
	}

	primaryStatus := domain.ParseTransferStatus(primaryResult.Data.Status)
	switch {
	case primaryStatus.InFlight():
		feeLeg := domain.TransferInstruction{
			AssetID:    asset,
			FromWallet: source,
			ToWallet:   s.treasuryAddress,
			Amount:     s.withdrawalFee,
		}
		feeResult, feeErr := s.custody.ExecuteTransfer(ctx, feeLeg)
		if feeErr != nil {
			// The primary already went out; a failed fee skim must not undo
			// it. Reconciliation collects the fee later.
			log.Printf("level=warn component=withdrawal msg=\"fee leg failed; deferring to reconciliation\" asset=%s source=%s err=%v", asset, source, feeErr)
		} else {
			feeStatus := feeResult.Data.Status
			settlement.FeeStatus = &feeStatus
		}

	case primaryStatus == domain.TransferStatusUnknown:
		log.Printf("level=warn component=withdrawal msg=\"unrecognized primary transfer status; fee leg suppressed\" asset=%s status=%q", asset, primaryResult.Data.Status)
	}

	if s.events != nil {
		event := rabbitmq.WithdrawalSettledEvent{
			AssetID:       asset,
			SourceWallet:  source,
			Destination:   destination,
			Amount:        amountTransfer,
			Fee:           s.withdrawalFee,
			PrimaryStatus: primaryResult.Data.Status,
			FeeCollected:  settlement.FeeStatus != nil,
			Timestamp:     time.Now().UTC(),
		}
		if pubErr := s.events.Publish(ctx, rabbitmq.SettlementExchange, "withdrawal.settled", event); pubErr != nil {
			log.Printf("level=warn component=withdrawal msg=\"failed to publish withdrawal settled event\" asset=%s err=%v", asset, pubErr)
		}
	}

	return settlement, nil
}
