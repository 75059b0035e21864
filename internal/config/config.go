package config

import (
	"log"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/mrosario/funeraria/internal/render"
)

type Config struct {
	Port           string
	DatabaseDSN    string
	Env            string
	DocumentDir    string
	DefaultTaxRate decimal.Decimal
	Issuer         render.Issuer
}

// Load loads configuration from environment with sensible defaults.
// Precedence: explicit env var > .env file (if loaded by caller) > default.
func Load() Config {
	cfg := Config{}
	cfg.Port = getEnv("PORT", "8080")
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", "funeraria.db")
	cfg.Env = getEnv("APP_ENV", "development")
	cfg.DocumentDir = getEnv("DOCUMENT_DIR", "documents")
	cfg.DefaultTaxRate = getDecimal("DEFAULT_TAX_RATE", "10.00")
	cfg.Issuer = render.Issuer{
		Name:    getEnv("ISSUER_NAME", "Funerária Memorial"),
		TaxID:   getEnv("ISSUER_TAX_ID", ""),
		Address: getEnv("ISSUER_ADDRESS", ""),
		Phone:   getEnv("ISSUER_PHONE", ""),
		Email:   getEnv("ISSUER_EMAIL", ""),
	}
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDecimal(key, def string) decimal.Decimal {
	raw := getEnv(key, def)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		log.Printf("invalid decimal for %s: %s, using %s", key, raw, def)
		return decimal.RequireFromString(def)
	}
	return d
}

// ParseBool reads an env var as bool with default.
func ParseBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("invalid boolean for %s: %s", key, v)
			return def
		}
		return b
	}
	return def
}
