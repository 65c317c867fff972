/**
 * @description
 * This file contains the core business logic for the settlement-service. The
 * `Service` struct orchestrates balance aggregation, swap conversion and
 * liquidity validation, and treasury fee settlement, coordinating between
 * the ledger repository, the custody/transfer-execution platform, the price
 * reference service, and the message broker.
 *
 * Key features:
 * - Folds the append-only transaction ledger into per-network, per-asset
 *   balance sheets.
 * - Validates treasury liquidity before honoring a swap and serializes swap
 *   execution per treasury asset so concurrent swaps cannot jointly overdraw
 *   a shared holding.
 * - Skims a flat fee into the treasury on outbound transfers, driven by the
 *   status the transfer-execution platform reports for the primary leg.
 *
 * @dependencies
 * - context, sync: Standard Go libraries.
 * - github.com/shopspring/decimal: Money arithmetic.
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/rabbitmq: Settlement event publishing.
 */

package app

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/meridianpay/settlement-service/internal/domain"
	"github.com/meridianpay/settlement-service/internal/store"
	"github.com/meridianpay/settlement-service/pkg/custodyclient"
	"github.com/meridianpay/settlement-service/pkg/priceclient"
	"github.com/meridianpay/settlement-service/pkg/rabbitmq"
)

// CustodyGateway is the slice of the custody client the service depends on.
type CustodyGateway interface {
	ExecuteTransfer(ctx context.Context, instruction domain.TransferInstruction) (*custodyclient.TransferResult, error)
	ListWalletAssets(ctx context.Context, walletID string) ([]domain.TreasuryAsset, error)
}

// PriceSource is the slice of the price-reference client the service depends on.
type PriceSource interface {
	GetUSDPrices(ctx context.Context, ids []string) (map[string]priceclient.Price, error)
}

// Service provides the core business logic for balances and settlement.
type Service struct {
	repo            store.Repository
	custody         CustodyGateway
	prices          PriceSource
	events          rabbitmq.Publisher
	treasuryID      string
	treasuryAddress string
	withdrawalFee   decimal.Decimal

	// treasuryLocks serializes swap execution per treasury asset. The
	// liquidity check and the two transfer legs form a check-then-act
	// sequence over a shared wallet; without the lock two concurrent swaps
	// that each pass validation can together overdraw one holding.
	treasuryLocks struct {
		mu    sync.Mutex
		locks map[string]*sync.Mutex
	}
}

// NewService creates a new settlement service instance.
func NewService(repo store.Repository, custody CustodyGateway, prices PriceSource, events rabbitmq.Publisher, treasuryWalletID, treasuryWalletAddress string, withdrawalFee decimal.Decimal) *Service {
	s := &Service{
		repo:            repo,
		custody:         custody,
		prices:          prices,
		events:          events,
		treasuryID:      treasuryWalletID,
		treasuryAddress: treasuryWalletAddress,
		withdrawalFee:   withdrawalFee,
	}
	s.treasuryLocks.locks = make(map[string]*sync.Mutex)
	return s
}

// lockTreasuryAsset acquires the per-asset mutex for the given treasury
// asset and returns its unlock function.
func (s *Service) lockTreasuryAsset(symbol string) func() {
	s.treasuryLocks.mu.Lock()
	lock, ok := s.treasuryLocks.locks[symbol]
	if !ok {
		lock = &sync.Mutex{}
		s.treasuryLocks.locks[symbol] = lock
	}
	s.treasuryLocks.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
