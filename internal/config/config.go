package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

// DefaultJWTSecret is only acceptable in the dev environment.
const DefaultJWTSecret = "dev-secret-change-me"

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverBadger   = "badger"
)

type Config struct {
	Port            string `validate:"required,numeric"`
	Env             string `validate:"required,oneof=dev test prod"`
	LogLevel        string `validate:"required,oneof=trace debug info warn error"`
	JWTSecret       string `validate:"required"`
	TokenTTLMinutes int    `validate:"gt=0"`
	StoreDriver     string `validate:"required,oneof=memory postgres sqlite badger"`
	DatabaseDSN     string
	BadgerPath      string
	BcryptCost      int     `validate:"min=4,max=31"`
	RateLimitRPS    float64 `validate:"gt=0"`
	RateLimitBurst  int     `validate:"gt=0"`
}

var validate = validator.New()

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// getenvInt falls back to def when the variable is missing, malformed or not positive.
func getenvInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

func Load() Config {
	return Config{
		Port:            getenv("APP_PORT", "8080"),
		Env:             getenv("APP_ENV", "dev"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		JWTSecret:       getenv("JWT_SECRET", DefaultJWTSecret),
		TokenTTLMinutes: getenvInt("TOKEN_TTL_MINUTES", 60),
		StoreDriver:     getenv("STORE_DRIVER", DriverMemory),
		DatabaseDSN:     os.Getenv("DATABASE_DSN"),
		BadgerPath:      os.Getenv("BADGER_PATH"),
		BcryptCost:      getenvInt("BCRYPT_COST", bcrypt.DefaultCost),
		RateLimitRPS:    getenvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:  getenvInt("RATE_LIMIT_BURST", 40),
	}
}

// Validate checks field constraints and the rules that span several fields.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	if cfg.Env != "dev" && cfg.JWTSecret == DefaultJWTSecret {
		return errors.New("JWT_SECRET must be changed outside the dev environment")
	}
	switch cfg.StoreDriver {
	case DriverPostgres, DriverSQLite:
		if cfg.DatabaseDSN == "" {
			return errors.New("DATABASE_DSN is required for the " + cfg.StoreDriver + " store")
		}
	case DriverBadger:
		if cfg.BadgerPath == "" {
			return errors.New("BADGER_PATH is required for the badger store")
		}
	}
	return nil
}
