package storage

import (
	"context"
	"errors"
	"strings"

	"expirywatch/internal/expiry"
	logx "expirywatch/pkg/logx"
)

// Store is the persistence API used by the sweep service.
type Store interface {
	// ListItems returns ownerScope's items sorted ascending by expiry date.
	ListItems(ctx context.Context, ownerScope string) ([]expiry.Item, error)
	// ListAccounts returns every account in directory order.
	ListAccounts(ctx context.Context) ([]expiry.Account, error)
	AppendRun(ctx context.Context, r RunRecord) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "postgres", "postgresql", "pg":
		return openPostgres(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
