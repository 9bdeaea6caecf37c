package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"expirywatch/internal/expiry"
	logx "expirywatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log.With(logx.String("comp", "storage.sqlite"))}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) ListItems(ctx context.Context, ownerScope string) ([]expiry.Item, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	ownerScope = strings.TrimSpace(ownerScope)
	if ownerScope == "" {
		return nil, ErrNoOwnerScope
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT i.name, i.expiry_date, i.reminder_threshold_days, c.name
		   FROM items i LEFT JOIN categories c ON c.id = i.category_id
		  WHERE i.owner = ?
		  ORDER BY i.expiry_date ASC, i.id ASC`, ownerScope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []expiry.Item
	for rows.Next() {
		var (
			name, date string
			threshold  sql.NullInt64
			category   sql.NullString
		)
		if err := rows.Scan(&name, &date, &threshold, &category); err != nil {
			return nil, err
		}
		d, err := parseDate(date)
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", name, err)
		}
		it := expiry.Item{Name: name, ExpiryDate: d, CategoryName: category.String}
		if threshold.Valid {
			v := int(threshold.Int64)
			it.ReminderThresholdDays = &v
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *sqliteStore) ListAccounts(ctx context.Context) ([]expiry.Account, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT email FROM accounts ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []expiry.Account
	for rows.Next() {
		var email sql.NullString
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		out = append(out, expiry.Account{Email: email.String})
	}
	return out, rows.Err()
}

func (s *sqliteStore) AppendRun(ctx context.Context, r RunRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(id, mode, started_at, finished_at, due, expired, imminent, sent, failed, err)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.Mode, r.StartedAt.Format(time.RFC3339Nano), r.FinishedAt.Format(time.RFC3339Nano),
		r.Due, r.Expired, r.Imminent, r.Sent, r.Failed, nullStr(r.Error),
	)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
