package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"expirywatch/internal/expiry"
	logx "expirywatch/pkg/logx"
)

//go:embed schema_postgres.sql
var postgresSchema string

type postgresStore struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

func openPostgres(cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("storage.dsn is required for postgres driver")
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnIdleTime = time.Minute

	log = log.With(logx.String("comp", "storage.postgres"))
	log.Info("initializing postgres pool",
		logx.String("host", poolCfg.ConnConfig.Host),
		logx.Int("port", int(poolCfg.ConnConfig.Port)),
		logx.String("db", poolCfg.ConnConfig.Database),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &postgresStore{pool: pool, log: log}, nil
}

func (s *postgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *postgresStore) ListItems(ctx context.Context, ownerScope string) ([]expiry.Item, error) {
	if s == nil || s.pool == nil {
		return nil, ErrDisabled
	}
	ownerScope = strings.TrimSpace(ownerScope)
	if ownerScope == "" {
		return nil, ErrNoOwnerScope
	}
	rows, err := s.pool.Query(ctx,
		`SELECT i.name, i.expiry_date, i.reminder_threshold_days, c.name
		   FROM items i LEFT JOIN categories c ON c.id = i.category_id
		  WHERE i.owner = $1
		  ORDER BY i.expiry_date ASC, i.id ASC`, ownerScope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []expiry.Item
	for rows.Next() {
		var (
			name      string
			date      time.Time
			threshold *int32
			category  *string
		)
		if err := rows.Scan(&name, &date, &threshold, &category); err != nil {
			return nil, err
		}
		y, m, d := date.Date()
		it := expiry.Item{Name: name, ExpiryDate: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
		if threshold != nil {
			v := int(*threshold)
			it.ReminderThresholdDays = &v
		}
		if category != nil {
			it.CategoryName = *category
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *postgresStore) ListAccounts(ctx context.Context) ([]expiry.Account, error) {
	if s == nil || s.pool == nil {
		return nil, ErrDisabled
	}
	rows, err := s.pool.Query(ctx, `SELECT email FROM accounts ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []expiry.Account
	for rows.Next() {
		var email *string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		a := expiry.Account{}
		if email != nil {
			a.Email = *email
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *postgresStore) AppendRun(ctx context.Context, r RunRecord) error {
	if s == nil || s.pool == nil {
		return ErrDisabled
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs(id, mode, started_at, finished_at, due, expired, imminent, sent, failed, err)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		r.ID, r.Mode, r.StartedAt, r.FinishedAt, r.Due, r.Expired, r.Imminent, r.Sent, r.Failed, nullStr(r.Error),
	)
	return err
}
