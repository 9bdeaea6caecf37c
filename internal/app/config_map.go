package app

import (
	"fmt"
	"strings"
	"time"

	"expirywatch/internal/config"
	"expirywatch/internal/expiry"
	"expirywatch/internal/gateway"
	"expirywatch/internal/httpapi"
	"expirywatch/internal/lock"
	"expirywatch/internal/scheduler"
	"expirywatch/internal/sweep"
	"expirywatch/internal/transport"
	logx "expirywatch/pkg/logx"
)

const (
	defaultSchedule   = "0 8 * * *"
	defaultRunTimeout = 2 * time.Minute
)

func mapLogConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File:    logx.FileConfig{Enabled: lc.File.Enabled, Path: lc.File.Path},
		Alerts: logx.AlertConfig{
			Enabled:    lc.Telegram.Enabled,
			Target:     transport.ChatTarget{ChatID: lc.Telegram.ChatID, ThreadID: lc.Telegram.ThreadID},
			MinLevel:   lc.Telegram.MinLevel,
			RatePerSec: lc.Telegram.RatePerSec,
		},
	}
}

func mapGatewayConfig(cfg *config.Config) (gateway.Config, error) {
	gc := cfg.Gateway
	timeout, err := config.ParseDurationOrDefault("gateway.timeout", gc.Timeout, 30*time.Second)
	if err != nil {
		return gateway.Config{}, err
	}
	return gateway.Config{
		Driver:     gc.Driver,
		RatePerSec: gc.RatePerSec,
		Timeout:    timeout,
		Resend:     gateway.ResendConfig{APIKey: gc.Resend.APIKey, BaseURL: gc.Resend.BaseURL},
		SMTP: gateway.SMTPConfig{
			Addr:               gc.SMTP.Addr,
			Username:           gc.SMTP.Username,
			Password:           gc.SMTP.Password,
			InsecureSkipVerify: gc.SMTP.InsecureSkipVerify,
		},
		AMQP: gateway.AMQPConfig{URL: gc.AMQP.URL, Exchange: gc.AMQP.Exchange, RoutingKey: gc.AMQP.RoutingKey},
	}, nil
}

func mapLockConfig(cfg *config.Config) (lock.Config, error) {
	lc := cfg.Lock
	ttl, err := config.ParseDurationOrDefault("lock.ttl", lc.TTL, lock.DefaultTTL)
	if err != nil {
		return lock.Config{}, err
	}
	return lock.Config{
		Driver:   lc.Driver,
		Addr:     lc.Addr,
		Password: lc.Password,
		DB:       lc.DB,
		Key:      lc.Key,
		TTL:      ttl,
	}, nil
}

// mapSweepConfig layers sweep.modes overrides onto the built-in policies.
func mapSweepConfig(cfg *config.Config) (sweep.Config, error) {
	sc := cfg.Sweep
	out := sweep.Config{
		OwnerScope: strings.TrimSpace(sc.OwnerScope),
		Location:   time.Local,
		Policies:   sweep.DefaultPolicies(),
	}
	if tz := strings.TrimSpace(sc.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return sweep.Config{}, fmt.Errorf("sweep.timezone: %w", err)
		}
		out.Location = loc
	}

	for name, mc := range sc.Modes {
		mode, err := sweep.ParseMode(name)
		if err != nil {
			return sweep.Config{}, fmt.Errorf("sweep.modes.%s: %w", name, err)
		}
		p := out.Policies[mode]
		if mc.DefaultReminderThresholdDays != nil {
			p.Thresholds.DefaultReminderDays = *mc.DefaultReminderThresholdDays
		}
		if mc.ImminentWindowDays != nil {
			p.Thresholds.ImminentWindowDays = *mc.ImminentWindowDays
		}
		if mc.FloorDays != nil {
			p.Thresholds.FloorDays = *mc.FloorDays
		}
		if mc.RecipientSelection != "" {
			sel, err := expiry.ParseSelectionMode(mc.RecipientSelection)
			if err != nil {
				return sweep.Config{}, fmt.Errorf("sweep.modes.%s.recipient_selection: %w", name, err)
			}
			p.Selection = sel
		}
		if mc.Title != "" {
			p.Framing.Title = mc.Title
		}
		if mc.SubjectPrefix != nil {
			p.Framing.SubjectPrefix = *mc.SubjectPrefix
		}
		if mc.Banner != nil {
			p.Framing.Banner = *mc.Banner
		}
		if mc.From != "" {
			p.From = mc.From
		}
		if mc.StampSendTime != nil {
			p.StampSendTime = *mc.StampSendTime
		}
		out.Policies[mode] = p
	}
	return out, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	tz := cfg.Scheduler.Timezone
	if strings.TrimSpace(tz) == "" {
		tz = cfg.Sweep.Timezone
	}
	return scheduler.Config{Enabled: cfg.Scheduler.Enabled, Timezone: tz}
}

func mapRunTimeout(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("scheduler.run_timeout", cfg.Scheduler.RunTimeout, defaultRunTimeout)
}

func mapHTTPConfig(cfg *config.Config) (httpapi.Config, error) {
	hc := cfg.HTTP
	rt, err := config.ParseDurationField("http.read_timeout", hc.ReadTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	wt, err := config.ParseDurationField("http.write_timeout", hc.WriteTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	return httpapi.Config{Enabled: hc.Enabled, Addr: strings.TrimSpace(hc.Addr), ReadTimeout: rt, WriteTimeout: wt}, nil
}

// schedules returns job name -> schedule for the enabled sweep jobs.
func schedules(cfg *config.Config) map[sweep.Mode]string {
	out := map[sweep.Mode]string{}
	s := strings.TrimSpace(cfg.Scheduler.Schedule)
	if s == "" {
		s = defaultSchedule
	}
	out[sweep.ModeReminder] = s
	if t := strings.TrimSpace(cfg.Scheduler.TestSchedule); t != "" {
		out[sweep.ModeTest] = t
	}
	return out
}
