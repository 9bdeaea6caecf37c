package config

import (
	"os"
	"strings"
)

// Secret overrides read from the environment.
const (
	EnvResendAPIKey  = "EXPIRYWATCH_RESEND_API_KEY"
	EnvSMTPPassword  = "EXPIRYWATCH_SMTP_PASSWORD"
	EnvDBDSN         = "EXPIRYWATCH_DB_DSN"
	EnvTelegramToken = "EXPIRYWATCH_TELEGRAM_TOKEN"
	EnvOwnerScope    = "EXPIRYWATCH_OWNER_SCOPE"
)

// OverrideFromEnv replaces secrets (and the owner scope) with non-empty
// environment values so they can stay out of the config file.
func OverrideFromEnv(cfg *Config) {
	overrideFromLookup(cfg, os.LookupEnv)
}

func overrideFromLookup(cfg *Config, lookup func(string) (string, bool)) {
	if cfg == nil {
		return
	}
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.Gateway.Resend.APIKey, EnvResendAPIKey)
	set(&cfg.Gateway.SMTP.Password, EnvSMTPPassword)
	set(&cfg.Storage.DSN, EnvDBDSN)
	set(&cfg.Logging.Telegram.Token, EnvTelegramToken)
	set(&cfg.Sweep.OwnerScope, EnvOwnerScope)
}
