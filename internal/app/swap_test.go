package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/meridianpay/settlement-service/internal/domain"
	"github.com/meridianpay/settlement-service/pkg/custodyclient"
)

func TestConvert_CrossRateThroughUSD(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeCustody{}, solUSDCPrices(), &fakePublisher{})

	got, err := svc.Convert(context.Background(), "SOL", decimal.NewFromInt(2), "USDC")
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected 2 SOL to convert to 300 USDC, got %s", got)
	}
}

func TestConvert_UnsupportedAsset(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeCustody{}, solUSDCPrices(), &fakePublisher{})

	_, err := svc.Convert(context.Background(), "DOGE", decimal.NewFromInt(1), "USDC")
	if !errors.Is(err, ErrUnsupportedAsset) {
		t.Fatalf("expected ErrUnsupportedAsset, got %v", err)
	}
}

func TestConvert_MissingPrice(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeCustody{}, &fakePrices{}, &fakePublisher{})

	_, err := svc.Convert(context.Background(), "SOL", decimal.NewFromInt(1), "USDC")
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestCanSwap_LiquidityGate(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		want   bool
	}{
		{name: "treasury covers converted amount", amount: 2, want: true},
		{name: "treasury cannot cover converted amount", amount: 10, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			custody := &fakeCustody{assets: []domain.TreasuryAsset{
				{AssetSymbol: "USDC", AvailableValue: decimal.NewFromInt(500)},
			}}
			svc := newTestService(&fakeRepo{}, custody, solUSDCPrices(), &fakePublisher{})

			ok, _, err := svc.CanSwap(context.Background(), "SOL", decimal.NewFromInt(tt.amount), "USDC")
			if err != nil {
				t.Fatalf("CanSwap returned error: %v", err)
			}
			if ok != tt.want {
				t.Fatalf("expected CanSwap=%v for %d SOL, got %v", tt.want, tt.amount, ok)
			}
		})
	}
}

func TestCanSwap_MissingTreasuryAssetIsFalseNotError(t *testing.T) {
	custody := &fakeCustody{assets: []domain.TreasuryAsset{
		{AssetSymbol: "SOL", AvailableValue: decimal.NewFromInt(1000)},
	}}
	svc := newTestService(&fakeRepo{}, custody, solUSDCPrices(), &fakePublisher{})

	ok, _, err := svc.CanSwap(context.Background(), "SOL", decimal.NewFromInt(1), "USDC")
	if err != nil {
		t.Fatalf("expected missing treasury asset to be a business outcome, got error: %v", err)
	}
	if ok {
		t.Fatal("expected CanSwap=false when treasury holds none of the receive asset")
	}
}

func TestExecuteSwap_IssuesBothLegs(t *testing.T) {
	custody := &fakeCustody{
		assets: []domain.TreasuryAsset{{AssetSymbol: "USDC", AvailableValue: decimal.NewFromInt(500)}},
	}
	events := &fakePublisher{}
	svc := newTestService(&fakeRepo{}, custody, solUSDCPrices(), events)

	settlement, err := svc.ExecuteSwap(context.Background(), "client-wallet", "SOL", decimal.NewFromInt(2), "USDC")
	if err != nil {
		t.Fatalf("ExecuteSwap returned error: %v", err)
	}
	if !settlement.Quote.ConvertedAmount.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected converted amount 300, got %s", settlement.Quote.ConvertedAmount)
	}

	executed := custody.executedInstructions()
	if len(executed) != 2 {
		t.Fatalf("expected 2 transfer legs, got %d", len(executed))
	}
	legIn, legOut := executed[0], executed[1]
	if legIn.FromWallet != "client-wallet" || legIn.ToWallet != testTreasuryAddress || legIn.AssetID != "SOL" {
		t.Fatalf("unexpected leg 1: %+v", legIn)
	}
	if legOut.FromWallet != testTreasuryAddress || legOut.ToWallet != "client-wallet" || legOut.AssetID != "USDC" {
		t.Fatalf("unexpected leg 2: %+v", legOut)
	}
	if !legOut.Amount.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected leg 2 amount 300, got %s", legOut.Amount)
	}

	published := events.published()
	if len(published) != 1 || published[0].routingKey != "swap.settled" {
		t.Fatalf("expected one swap.settled event, got %+v", published)
	}
}

func TestExecuteSwap_InsufficientLiquidity(t *testing.T) {
	custody := &fakeCustody{
		assets: []domain.TreasuryAsset{{AssetSymbol: "USDC", AvailableValue: decimal.NewFromInt(100)}},
	}
	svc := newTestService(&fakeRepo{}, custody, solUSDCPrices(), &fakePublisher{})

	_, err := svc.ExecuteSwap(context.Background(), "client-wallet", "SOL", decimal.NewFromInt(2), "USDC")
	if !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	if len(custody.executedInstructions()) != 0 {
		t.Fatal("expected no transfer legs after a liquidity rejection")
	}
}

func TestExecuteSwap_FailedFirstLegBlocksSecond(t *testing.T) {
	custody := &fakeCustody{
		assets: []domain.TreasuryAsset{{AssetSymbol: "USDC", AvailableValue: decimal.NewFromInt(500)}},
	}
	custody.executeFn = func(instruction domain.TransferInstruction) (*custodyclient.TransferResult, error) {
		return transferResult("FAILED"), nil
	}
	svc := newTestService(&fakeRepo{}, custody, solUSDCPrices(), &fakePublisher{})

	_, err := svc.ExecuteSwap(context.Background(), "client-wallet", "SOL", decimal.NewFromInt(2), "USDC")
	if !errors.Is(err, ErrTransferExecution) {
		t.Fatalf("expected ErrTransferExecution, got %v", err)
	}
	if len(custody.executedInstructions()) != 1 {
		t.Fatalf("expected only leg 1 to be issued, got %d legs", len(custody.executedInstructions()))
	}
}

func TestExecuteSwap_SecondLegFailurePublishesCompensation(t *testing.T) {
	custody := &fakeCustody{
		assets: []domain.TreasuryAsset{{AssetSymbol: "USDC", AvailableValue: decimal.NewFromInt(500)}},
	}
	calls := 0
	custody.executeFn = func(instruction domain.TransferInstruction) (*custodyclient.TransferResult, error) {
		calls++
		if calls == 1 {
			return transferResult("SIGNED_PENDING_BROADCAST"), nil
		}
		return nil, errors.New("custody timeout")
	}
	events := &fakePublisher{}
	svc := newTestService(&fakeRepo{}, custody, solUSDCPrices(), events)

	_, err := svc.ExecuteSwap(context.Background(), "client-wallet", "SOL", decimal.NewFromInt(2), "USDC")
	if !errors.Is(err, ErrSwapIncomplete) {
		t.Fatalf("expected ErrSwapIncomplete, got %v", err)
	}

	published := events.published()
	if len(published) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(published))
	}
	if published[0].routingKey != "swap.compensation_required" {
		t.Fatalf("expected swap.compensation_required, got %s", published[0].routingKey)
	}
}

func TestExecuteSwap_ConcurrentSwapsCannotJointlyOverdraw(t *testing.T) {
	// Treasury holds 500 USDC; each swap needs 300. The per-asset lock must
	// serialize the check-then-act sequences so only one swap executes.
	available := decimal.NewFromInt(500)
	var mu sync.Mutex

	custody := &fakeCustody{}
	custody.executeFn = func(instruction domain.TransferInstruction) (*custodyclient.TransferResult, error) {
		if instruction.FromWallet == testTreasuryAddress {
			mu.Lock()
			if instruction.Amount.GreaterThan(available) {
				mu.Unlock()
				return nil, fmt.Errorf("treasury overdrawn: %s > %s", instruction.Amount, available)
			}
			available = available.Sub(instruction.Amount)
			mu.Unlock()
		}
		return transferResult("COMPLETED"), nil
	}
	// ListWalletAssets reads the live remaining balance.
	baseList := func() []domain.TreasuryAsset {
		mu.Lock()
		defer mu.Unlock()
		return []domain.TreasuryAsset{{AssetSymbol: "USDC", AvailableValue: available}}
	}

	svc := newTestService(&fakeRepo{}, custody, solUSDCPrices(), &fakePublisher{})
	svc.custody = &liveAssetsCustody{fakeCustody: custody, list: baseList}

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.ExecuteSwap(context.Background(), "client-wallet", "SOL", decimal.NewFromInt(2), "USDC")
			results[i] = err
		}(i)
	}
	wg.Wait()

	var successes, rejections int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInsufficientLiquidity):
			rejections++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || rejections != 1 {
		t.Fatalf("expected exactly one success and one liquidity rejection, got %d/%d", successes, rejections)
	}
	if available.LessThan(decimal.Zero) {
		t.Fatalf("treasury overdrawn to %s", available)
	}
}

// liveAssetsCustody overrides asset listing with a live snapshot function.
type liveAssetsCustody struct {
	*fakeCustody
	list func() []domain.TreasuryAsset
}

func (c *liveAssetsCustody) ListWalletAssets(ctx context.Context, walletID string) ([]domain.TreasuryAsset, error) {
	return c.list(), nil
}
