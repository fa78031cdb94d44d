package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds process configuration loaded once at startup. Services take
// the values they need at construction time; nothing reads env afterwards.
type Config struct {
	Port               string
	DatabaseURL        string
	JWTSecret          string
	PlatformFeePercent decimal.Decimal
	MinWithdrawal      decimal.Decimal
	DefaultCurrency    string
}

// Load reads .env if present, then the environment, applying defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}

	cfg := Config{
		Port:               getenv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTSecret:          getenv("JWT_SECRET", "supersecret"),
		PlatformFeePercent: getdecimal("PLATFORM_FEE_PERCENT", "10"),
		MinWithdrawal:      getdecimal("MIN_WITHDRAWAL_AMOUNT", "50"),
		DefaultCurrency:    getenv("DEFAULT_CURRENCY", "USD"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "postgres://" + os.Getenv("DB_USER") + ":" + os.Getenv("DB_PASSWORD") +
			"@" + getenv("DB_HOST", "localhost") + ":" + getenv("DB_PORT", "5432") + "/" + os.Getenv("DB_NAME")
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getdecimal(key, fallback string) decimal.Decimal {
	raw := getenv(key, fallback)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using default %s", key, raw, fallback)
		d, _ = decimal.NewFromString(fallback)
	}
	return d
}
