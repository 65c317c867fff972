package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "SERVER_PORT")
	unsetEnvWithCleanup(t, "PORT")
	unsetEnvWithCleanup(t, "WITHDRAWAL_FEE_UNITS")
	unsetEnvWithCleanup(t, "IDEMPOTENCY_TTL_MINUTES")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8084" {
		t.Fatalf("expected default ServerPort 8084, got %q", cfg.ServerPort)
	}
	if cfg.WithdrawalFeeUnits != 1.0 {
		t.Fatalf("expected default WithdrawalFeeUnits 1.0, got %f", cfg.WithdrawalFeeUnits)
	}
	if cfg.IdempotencyTTLMin != 1440 {
		t.Fatalf("expected default IdempotencyTTLMin 1440, got %d", cfg.IdempotencyTTLMin)
	}
}

func TestLoadConfig_NegativeFeeCoercedToDefault(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "WITHDRAWAL_FEE_UNITS", "-3")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.WithdrawalFeeUnits != 1.0 {
		t.Fatalf("expected negative fee to coerce to 1.0, got %f", cfg.WithdrawalFeeUnits)
	}
}

func TestLoadConfig_PortEnvOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "9000")
	setEnvWithCleanup(t, "PORT", "9100")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9100" {
		t.Fatalf("expected PORT to take precedence, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_TrimsBaseURLs(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "CUSTODY_API_BASE_URL", " https://custody.example.com/ ")
	setEnvWithCleanup(t, "PRICE_API_BASE_URL", "https://prices.example.com/")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.CustodyAPIBaseURL != "https://custody.example.com" {
		t.Fatalf("expected trimmed custody base url, got %q", cfg.CustodyAPIBaseURL)
	}
	if cfg.PriceAPIBaseURL != "https://prices.example.com" {
		t.Fatalf("expected trimmed price base url, got %q", cfg.PriceAPIBaseURL)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if hadPrev {
			os.Setenv(key, prev)
		} else {
			os.Unsetenv(key)
		}
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	os.Unsetenv(key)
	t.Cleanup(func() {
		if hadPrev {
			os.Setenv(key, prev)
		}
	})
}
