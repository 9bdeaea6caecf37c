package config

import (
	"reflect"
	"sort"
	"strings"

	logx "expirywatch/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and log fields
// describing the new values. Secrets are reported only as "set" flags.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 16)
	set := func(s string) bool { return strings.TrimSpace(s) != "" }

	if !reflect.DeepEqual(oldCfg.Sweep, newCfg.Sweep) {
		changed = append(changed, "sweep")
		modes := make([]string, 0, len(newCfg.Sweep.Modes))
		for k := range newCfg.Sweep.Modes {
			modes = append(modes, k)
		}
		sort.Strings(modes)
		attrs = append(attrs,
			logx.Bool("sweep.owner_scope_changed", oldCfg.Sweep.OwnerScope != newCfg.Sweep.OwnerScope),
			logx.String("sweep.timezone", newCfg.Sweep.Timezone),
			logx.Strings("sweep.modes", modes),
		)
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.schedule", newCfg.Scheduler.Schedule),
			logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.Bool("storage.path_set", set(newCfg.Storage.Path)),
			logx.Bool("storage.dsn_set", set(newCfg.Storage.DSN)),
		)
	}
	if oldCfg.Gateway != newCfg.Gateway {
		changed = append(changed, "gateway")
		attrs = append(attrs,
			logx.String("gateway.driver", newCfg.Gateway.Driver),
			logx.Int("gateway.rate_per_sec", newCfg.Gateway.RatePerSec),
			logx.Bool("gateway.resend_key_set", set(newCfg.Gateway.Resend.APIKey)),
			logx.Bool("gateway.smtp_password_set", set(newCfg.Gateway.SMTP.Password)),
		)
	}
	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.Bool("http.enabled", newCfg.HTTP.Enabled),
			logx.String("http.addr", newCfg.HTTP.Addr),
		)
	}
	if oldCfg.Lock != newCfg.Lock {
		changed = append(changed, "lock")
		attrs = append(attrs, logx.String("lock.driver", newCfg.Lock.Driver))
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}
	sort.Strings(changed)
	return changed, attrs
}
