package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config carries every externally supplied setting, read once at startup
// and passed into constructors.
type Config struct {
	Port     string `env:"PARAMOUNT_API_PORT,default=9001"`
	LogLevel string `env:"PARAMOUNT_LOG_LEVEL,default=info"`

	// Recording side.
	RecordEnabled bool   `env:"PARAMOUNT_RECORD_ENABLED,default=true"`
	FunctionURL   string `env:"PARAMOUNT_FUNCTION_URL,default=http://localhost:9000"`

	// Storage backend selection: csv or postgres.
	DBType       string `env:"PARAMOUNT_DB_TYPE,default=csv"`
	PostgresConn string `env:"PARAMOUNT_POSTGRES_CONNECTION_STRING"`
	CSVDir       string `env:"PARAMOUNT_CSV_DIR,default=."`

	// Tenant splitting.
	SplitByID         bool   `env:"PARAMOUNT_SPLIT_BY_ID,default=false"`
	IdentifierColname string `env:"PARAMOUNT_IDENTIFIER_COLNAME"`

	// Optional API protection and caching.
	JWTSecret string        `env:"PARAMOUNT_API_JWT_SECRET"`
	RedisAddr string        `env:"PARAMOUNT_REDIS_ADDR"`
	CacheTTL  time.Duration `env:"PARAMOUNT_CACHE_TTL,default=30s"`

	ReplayTimeout time.Duration `env:"PARAMOUNT_REPLAY_TIMEOUT,default=60s"`

	// UI column display configuration, served verbatim on /config.
	MetaCols   []string `env:"PARAMOUNT_META_COLS"`
	InputCols  []string `env:"PARAMOUNT_INPUT_COLS"`
	OutputCols []string `env:"PARAMOUNT_OUTPUT_COLS"`
}

func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}
	if cfg.DBType != "csv" && cfg.DBType != "postgres" {
		return nil, fmt.Errorf("unsupported db type %q (want csv or postgres)", cfg.DBType)
	}
	if cfg.DBType == "postgres" && cfg.PostgresConn == "" {
		return nil, fmt.Errorf("PARAMOUNT_POSTGRES_CONNECTION_STRING is required for db type postgres")
	}
	if cfg.SplitByID && cfg.IdentifierColname == "" {
		return nil, fmt.Errorf("PARAMOUNT_IDENTIFIER_COLNAME is required when PARAMOUNT_SPLIT_BY_ID is set")
	}
	return &cfg, nil
}
