/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the settlement-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort            string  `mapstructure:"SERVER_PORT"`
	DatabaseURL           string  `mapstructure:"DATABASE_URL"`
	RedisURL              string  `mapstructure:"REDIS_URL"`
	RabbitMQURL           string  `mapstructure:"RABBITMQ_URL"`
	CustodyAPIBaseURL     string  `mapstructure:"CUSTODY_API_BASE_URL"`
	CustodyAPIKey         string  `mapstructure:"CUSTODY_API_KEY"`
	PriceAPIBaseURL       string  `mapstructure:"PRICE_API_BASE_URL"`
	TreasuryWalletID      string  `mapstructure:"TREASURY_WALLET_ID"`
	TreasuryWalletAddress string  `mapstructure:"TREASURY_WALLET_ADDRESS"`
	WithdrawalFeeUnits    float64 `mapstructure:"WITHDRAWAL_FEE_UNITS"`
	IdempotencyTTLMin     int     `mapstructure:"IDEMPOTENCY_TTL_MINUTES"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8084")
	viper.SetDefault("PRICE_API_BASE_URL", "https://api.coingecko.com")
	viper.SetDefault("WITHDRAWAL_FEE_UNITS", 1.0)
	viper.SetDefault("IDEMPOTENCY_TTL_MINUTES", 1440)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "SETTLEMENT_REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("CUSTODY_API_BASE_URL")
	_ = viper.BindEnv("CUSTODY_API_KEY")
	_ = viper.BindEnv("PRICE_API_BASE_URL")
	_ = viper.BindEnv("TREASURY_WALLET_ID")
	_ = viper.BindEnv("TREASURY_WALLET_ADDRESS")
	_ = viper.BindEnv("WITHDRAWAL_FEE_UNITS")
	_ = viper.BindEnv("IDEMPOTENCY_TTL_MINUTES")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.CustodyAPIBaseURL = strings.TrimRight(strings.TrimSpace(config.CustodyAPIBaseURL), "/")
	config.PriceAPIBaseURL = strings.TrimRight(strings.TrimSpace(config.PriceAPIBaseURL), "/")
	config.TreasuryWalletID = strings.TrimSpace(config.TreasuryWalletID)
	config.TreasuryWalletAddress = strings.TrimSpace(config.TreasuryWalletAddress)

	// The flat withdrawal fee is denominated in units of the withdrawn
	// asset. Zero disables skimming; negative makes no sense.
	if config.WithdrawalFeeUnits < 0 {
		log.Printf("level=warn component=config msg=\"negative withdrawal fee configured; coercing to default\" fee_units=%f", config.WithdrawalFeeUnits)
		config.WithdrawalFeeUnits = 1.0
	}

	if config.IdempotencyTTLMin <= 0 {
		config.IdempotencyTTLMin = 1440
	}

	return
}
