package app

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridianpay/settlement-service/internal/domain"
	"github.com/meridianpay/settlement-service/pkg/custodyclient"
	"github.com/meridianpay/settlement-service/pkg/priceclient"
)

const (
	testTreasuryID      = "trsy_wallet_01"
	testTreasuryAddress = "TREASURY-ADDR"
)

// fakeRepo is an in-memory Repository for tests.
type fakeRepo struct {
	records     []domain.LedgerRecord
	bindings    []domain.PaymentMethodBinding
	recordsErr  error
	bindingsErr error
}

func (f *fakeRepo) ListLedgerRecordsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.LedgerRecord, error) {
	if f.recordsErr != nil {
		return nil, f.recordsErr
	}
	var out []domain.LedgerRecord
	for _, r := range f.records {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListLedgerRecordsByWallet(ctx context.Context, walletAddress string) ([]domain.LedgerRecord, error) {
	if f.recordsErr != nil {
		return nil, f.recordsErr
	}
	var out []domain.LedgerRecord
	for _, r := range f.records {
		if r.WalletAddress == walletAddress {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListPaymentMethodBindingsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.PaymentMethodBinding, error) {
	if f.bindingsErr != nil {
		return nil, f.bindingsErr
	}
	var out []domain.PaymentMethodBinding
	for _, b := range f.bindings {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	return out, nil
}

// fakeCustody is an in-memory custody gateway. Executed instructions are
// recorded; executeFn customizes per-call behavior and defaults to a
// COMPLETED status.
type fakeCustody struct {
	mu        sync.Mutex
	assets    []domain.TreasuryAsset
	listErr   error
	executeFn func(instruction domain.TransferInstruction) (*custodyclient.TransferResult, error)
	executed  []domain.TransferInstruction
}

func (f *fakeCustody) ListWalletAssets(ctx context.Context, walletID string) ([]domain.TreasuryAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.TreasuryAsset, len(f.assets))
	copy(out, f.assets)
	return out, nil
}

func (f *fakeCustody) ExecuteTransfer(ctx context.Context, instruction domain.TransferInstruction) (*custodyclient.TransferResult, error) {
	f.mu.Lock()
	fn := f.executeFn
	f.executed = append(f.executed, instruction)
	f.mu.Unlock()

	if fn != nil {
		return fn(instruction)
	}
	return transferResult("COMPLETED"), nil
}

func (f *fakeCustody) executedInstructions() []domain.TransferInstruction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TransferInstruction, len(f.executed))
	copy(out, f.executed)
	return out
}

func transferResult(status string) *custodyclient.TransferResult {
	res := &custodyclient.TransferResult{}
	res.Data.ID = "tr_test"
	res.Data.Status = status
	return res
}

// fakePrices serves a fixed price table.
type fakePrices struct {
	prices map[string]priceclient.Price
	err    error
}

func (f *fakePrices) GetUSDPrices(ctx context.Context, ids []string) (map[string]priceclient.Price, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]priceclient.Price)
	for _, id := range ids {
		if p, ok := f.prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

func (f *fakePublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

func (f *fakePublisher) Close() {}

func (f *fakePublisher) published() []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedEvent, len(f.events))
	copy(out, f.events)
	return out
}

func newTestService(repo *fakeRepo, custody *fakeCustody, prices *fakePrices, events *fakePublisher) *Service {
	return NewService(repo, custody, prices, events, testTreasuryID, testTreasuryAddress, decimal.NewFromInt(1))
}

func solUSDCPrices() *fakePrices {
	return &fakePrices{prices: map[string]priceclient.Price{
		"solana":   {USD: decimal.NewFromInt(150)},
		"usd-coin": {USD: decimal.NewFromInt(1)},
	}}
}
