package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"expirywatch/internal/expiry"
	"expirywatch/internal/scheduler"
	logx "expirywatch/pkg/logx"
)

// Known trigger modes under sweep.modes.
var knownModes = map[string]bool{"reminder": true, "test": true}

// Validate checks everything that can be checked without touching the network.
// All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if strings.TrimSpace(cfg.Sweep.OwnerScope) == "" {
		add("sweep.owner_scope is required")
	}
	for _, tz := range []struct{ path, v string }{
		{"sweep.timezone", cfg.Sweep.Timezone},
		{"scheduler.timezone", cfg.Scheduler.Timezone},
	} {
		if strings.TrimSpace(tz.v) == "" {
			continue
		}
		if _, err := time.LoadLocation(strings.TrimSpace(tz.v)); err != nil {
			add("%s: %v", tz.path, err)
		}
	}
	for name, m := range cfg.Sweep.Modes {
		p := "sweep.modes." + name
		if !knownModes[name] {
			add("%s: unknown mode (use reminder or test)", p)
			continue
		}
		for _, f := range []struct {
			field string
			v     *int
		}{
			{"default_reminder_threshold_days", m.DefaultReminderThresholdDays},
			{"imminent_window_days", m.ImminentWindowDays},
			{"floor_days", m.FloorDays},
		} {
			if f.v != nil && *f.v < 0 {
				add("%s.%s must be >= 0", p, f.field)
			}
		}
		if m.RecipientSelection != "" {
			if _, err := expiry.ParseSelectionMode(m.RecipientSelection); err != nil {
				add("%s.recipient_selection: %v", p, err)
			}
		}
	}

	// Schedules are registered even while the scheduler is disabled.
	for _, sc := range []struct{ path, v string }{
		{"scheduler.schedule", cfg.Scheduler.Schedule},
		{"scheduler.test_schedule", cfg.Scheduler.TestSchedule},
	} {
		if strings.TrimSpace(sc.v) == "" {
			continue
		}
		if _, err := scheduler.ParseSchedule(sc.v); err != nil {
			add("%s: %v", sc.path, err)
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			add("storage.path is required for driver %q", cfg.Storage.Driver)
		}
	case "postgres", "postgresql", "pg":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			add("storage.dsn (or %s) is required for postgres", EnvDBDSN)
		}
	case "", "none":
		add("storage.driver is required (file, sqlite or postgres)")
	default:
		add("storage.driver: unknown driver %q", cfg.Storage.Driver)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Gateway.Driver)) {
	case "", "log":
	case "resend":
		if strings.TrimSpace(cfg.Gateway.Resend.APIKey) == "" {
			add("gateway.resend.api_key (or %s) is required", EnvResendAPIKey)
		}
	case "smtp":
		if strings.TrimSpace(cfg.Gateway.SMTP.Addr) == "" {
			add("gateway.smtp.addr is required")
		}
	case "amqp", "rabbitmq":
		if strings.TrimSpace(cfg.Gateway.AMQP.URL) == "" {
			add("gateway.amqp.url is required")
		}
	default:
		add("gateway.driver: unknown driver %q", cfg.Gateway.Driver)
	}
	if cfg.Gateway.RatePerSec < 0 {
		add("gateway.rate_per_sec must be >= 0")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Lock.Driver)) {
	case "", "none", "local":
	case "redis":
		if strings.TrimSpace(cfg.Lock.Addr) == "" {
			add("lock.addr is required for redis")
		}
	default:
		add("lock.driver: unknown driver %q", cfg.Lock.Driver)
	}

	if !logx.ValidLevel(cfg.Logging.Level) {
		add("logging.level: unknown level %q", cfg.Logging.Level)
	}
	if t := cfg.Logging.Telegram; t.Enabled {
		if strings.TrimSpace(t.Token) == "" {
			add("logging.telegram.token (or %s) is required when enabled", EnvTelegramToken)
		}
		if t.ChatID == 0 {
			add("logging.telegram.chat_id is required when enabled")
		}
		if !logx.ValidLevel(t.MinLevel) {
			add("logging.telegram.min_level: unknown level %q", t.MinLevel)
		}
	}

	for _, d := range []struct{ path, v string }{
		{"scheduler.run_timeout", cfg.Scheduler.RunTimeout},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
		{"gateway.timeout", cfg.Gateway.Timeout},
		{"http.read_timeout", cfg.HTTP.ReadTimeout},
		{"http.write_timeout", cfg.HTTP.WriteTimeout},
		{"lock.ttl", cfg.Lock.TTL},
	} {
		if _, err := ParseDurationField(d.path, d.v); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
