package config

// Config is the whole service configuration (JSON or YAML).
type Config struct {
	Sweep     SweepConfig     `json:"sweep"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   StorageConfig   `json:"storage"`
	Gateway   GatewayConfig   `json:"gateway"`
	HTTP      HTTPConfig      `json:"http"`
	Lock      LockConfig      `json:"lock,omitempty"`
	Logging   LoggingConfig   `json:"logging"`
}

// SweepConfig scopes and tunes the reminder sweep.
//
// Example:
//
//	"sweep": {
//	  "owner_scope": "3f1c...",
//	  "timezone": "Asia/Shanghai",
//	  "modes": { "test": { "recipient_selection": "broadcast-all" } }
//	}
type SweepConfig struct {
	// OwnerScope selects whose items are read. Required.
	OwnerScope string `json:"owner_scope"`
	// Timezone defines the calendar day of the reference date (IANA name).
	Timezone string `json:"timezone,omitempty"`
	// Modes overrides the built-in "reminder" and "test" policies field by field.
	Modes map[string]ModeConfig `json:"modes,omitempty"`
}

// ModeConfig overrides one trigger mode. Omitted fields keep the built-in value.
type ModeConfig struct {
	DefaultReminderThresholdDays *int    `json:"default_reminder_threshold_days,omitempty"`
	ImminentWindowDays           *int    `json:"imminent_window_days,omitempty"`
	FloorDays                    *int    `json:"floor_days,omitempty"`
	RecipientSelection           string  `json:"recipient_selection,omitempty"` // single-primary | broadcast-all
	Title                        string  `json:"title,omitempty"`
	SubjectPrefix                *string `json:"subject_prefix,omitempty"`
	Banner                       *string `json:"banner,omitempty"`
	From                         string  `json:"from,omitempty"`
	StampSendTime                *bool   `json:"stamp_send_time,omitempty"`
}

// SchedulerConfig controls periodic triggering.
//
// Schedules accept cron ("0 8 * * *"), "at:HH:MM" or an interval ("6h").
type SchedulerConfig struct {
	Enabled      bool   `json:"enabled"`
	Schedule     string `json:"schedule,omitempty"`      // reminder mode; default "0 8 * * *"
	TestSchedule string `json:"test_schedule,omitempty"` // optional; test mode is normally triggered by hand
	Timezone     string `json:"timezone,omitempty"`
	// RunTimeout is a Go duration string. Default "2m".
	RunTimeout string `json:"run_timeout,omitempty"`
}

// StorageConfig selects the item repository / account directory.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/inventory.sqlite" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`          // postgres; EXPIRYWATCH_DB_DSN overrides
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	MaxConns    int32  `json:"max_conns,omitempty"`    // postgres
}

type GatewayConfig struct {
	Driver     string `json:"driver"` // log | resend | smtp | amqp
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	// Timeout bounds a single send (Go duration string). Default "30s".
	Timeout string `json:"timeout,omitempty"`

	Resend ResendConfig `json:"resend,omitempty"`
	SMTP   SMTPConfig   `json:"smtp,omitempty"`
	AMQP   AMQPConfig   `json:"amqp,omitempty"`
}

type ResendConfig struct {
	APIKey  string `json:"api_key,omitempty"` // EXPIRYWATCH_RESEND_API_KEY overrides
	BaseURL string `json:"base_url,omitempty"`
}

type SMTPConfig struct {
	Addr               string `json:"addr,omitempty"`
	Username           string `json:"username,omitempty"`
	Password           string `json:"password,omitempty"` // EXPIRYWATCH_SMTP_PASSWORD overrides
	InsecureSkipVerify bool   `json:"insecure_skip_verify,omitempty"`
}

type AMQPConfig struct {
	URL        string `json:"url,omitempty"`
	Exchange   string `json:"exchange,omitempty"`
	RoutingKey string `json:"routing_key,omitempty"`
}

// HTTPConfig controls the trigger endpoint.
//
// Prefer binding to localhost or a private network; the trigger has no auth.
type HTTPConfig struct {
	Enabled      bool   `json:"enabled"`
	Addr         string `json:"addr,omitempty"` // default ":8080"
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
}

// LockConfig keeps replicas from sweeping concurrently.
type LockConfig struct {
	Driver   string `json:"driver,omitempty"` // none | redis
	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	Key      string `json:"key,omitempty"`
	TTL      string `json:"ttl,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards WARN+ log lines to an operator chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"` // EXPIRYWATCH_TELEGRAM_TOKEN overrides
	ChatID     int64  `json:"chat_id,omitempty"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}
