// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           int
	DatabaseURL    string
	DatabaseType   string
	GuestTokenSalt string
	IPHashSalt     string
	RedisURL       string
	KafkaBrokers   []string
	KafkaTopic     string
	FormTokenTTL   time.Duration
	StoreRetries   int
	OTLPEndpoint   string
	TraceSampling  float64
}

// LoadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ParseFlags validates flags and fills the rest from the environment
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var brokers string
	retries := -1
	sampling := -1.0

	fset := flag.NewFlagSet("topic-polls", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fset.IntVar(&cfg.Port, "p", 0, "Server port")
	fset.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fset.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite, postgres or pgx)")
	fset.StringVar(&cfg.RedisURL, "redis", "", "Redis URL for form tokens (optional)")
	fset.StringVar(&brokers, "kafka-brokers", "", "Comma-separated Kafka brokers for the moderation log (optional)")
	fset.StringVar(&cfg.KafkaTopic, "kafka-topic", "", "Kafka topic for the moderation log")
	fset.DurationVar(&cfg.FormTokenTTL, "form-ttl", 0, "Form token lifetime")
	fset.IntVar(&retries, "retries", -1, "Retries when the database is unavailable")
	fset.StringVar(&cfg.OTLPEndpoint, "otlp", "", "OTLP gRPC endpoint for traces (optional)")
	fset.Float64Var(&sampling, "trace-sampling", -1, "Share of traces to sample, 0 to 1")

	// Secrets (prefer env variables, but allow CLI for dev)
	fset.StringVar(&cfg.GuestTokenSalt, "guest-salt", "", "Guest vote token salt (prefer env)")
	fset.StringVar(&cfg.IPHashSalt, "ip-salt", "", "IP hash salt (prefer env)")

	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3318 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}
	switch cfg.DatabaseType {
	case "sqlite", "postgres", "pgx":
	default:
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	if cfg.RedisURL == "" {
		cfg.RedisURL = os.Getenv("REDIS_URL")
	}
	if brokers == "" {
		brokers = os.Getenv("KAFKA_BROKERS")
	}
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = os.Getenv("KAFKA_TOPIC")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		cfg.KafkaTopic = "poll-moderation"
	}

	if cfg.FormTokenTTL == 0 {
		if ttl := os.Getenv("FORM_TOKEN_TTL"); ttl != "" {
			d, err := time.ParseDuration(ttl)
			if err != nil || d <= 0 {
				return Config{}, errors.New("invalid FORM_TOKEN_TTL env variable")
			}
			cfg.FormTokenTTL = d
		} else {
			cfg.FormTokenTTL = time.Hour
		}
	}

	if retries < 0 {
		if s := os.Getenv("STORE_RETRIES"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return Config{}, errors.New("invalid STORE_RETRIES env variable")
			}
			retries = n
		} else {
			retries = 3
		}
	}
	cfg.StoreRetries = retries

	if cfg.OTLPEndpoint == "" {
		cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if sampling < 0 {
		if s := os.Getenv("TRACE_SAMPLING"); s != "" {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil || f < 0 || f > 1 {
				return Config{}, errors.New("invalid TRACE_SAMPLING env variable")
			}
			sampling = f
		} else {
			sampling = 1
		}
	}
	if sampling > 1 {
		return Config{}, errors.New("trace sampling must be between 0 and 1")
	}
	cfg.TraceSampling = sampling

	// Secrets - MUST be provided
	if cfg.GuestTokenSalt == "" {
		cfg.GuestTokenSalt = os.Getenv("GUEST_TOKEN_SALT")
	}
	if cfg.GuestTokenSalt == "" {
		return Config{}, errors.New("GUEST_TOKEN_SALT required")
	}

	if cfg.IPHashSalt == "" {
		cfg.IPHashSalt = os.Getenv("IP_HASH_SALT")
	}
	if cfg.IPHashSalt == "" {
		cfg.IPHashSalt = cfg.GuestTokenSalt
	}

	return cfg, nil
}
