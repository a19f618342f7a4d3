package database

import (
	"context"
	"fmt"
	"time"

	"readly/internal/config"
	"readly/internal/logger"

	_ "github.com/godror/godror"       // Oracle driver (OCI)
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/jmoiron/sqlx"
	_ "github.com/sijms/go-ora/v2" // Oracle driver (pure Go)
	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

func init() {
	// sqlx does not know go-ora's driver name; it speaks Oracle's :name binds.
	sqlx.BindDriver("oracle", sqlx.NAMED)
}

// NewSQLXDB opens and pings a connection for the configured driver
// ("oracle", "godror" or "pgx").
func NewSQLXDB(cfg *config.Config) (*sqlx.DB, error) {
	driver := cfg.DB.Driver
	switch driver {
	case "oracle", "godror", "pgx":
	default:
		return nil, fmt.Errorf("unsupported db.driver %q", driver)
	}

	db, err := sqlx.Open(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	logger.Get().Info("Successfully connected to database",
		zap.String("driver", driver),
		zap.String("host", cfg.DB.Host),
		zap.Int("port", cfg.DB.Port))
	return db, nil
}

// Dialect maps a driver name to its migrations directory.
func Dialect(driver string) string {
	if driver == "pgx" {
		return "postgres"
	}
	return "oracle"
}
