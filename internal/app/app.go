package app

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"expirywatch/internal/config"
	"expirywatch/internal/eventbus"
	"expirywatch/internal/expiry"
	"expirywatch/internal/gateway"
	"expirywatch/internal/httpapi"
	"expirywatch/internal/lock"
	"expirywatch/internal/runtime/supervisor"
	"expirywatch/internal/scheduler"
	"expirywatch/internal/storage"
	"expirywatch/internal/sweep"
	"expirywatch/internal/transport/telegram"
	logx "expirywatch/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store  storage.Store
	locker lock.Locker

	// gwMu guards gw and gwCfg across reloads.
	gwMu  sync.Mutex
	gw    gateway.Sender
	gwCfg gateway.Config

	alertToken string

	sweep *sweep.Service
	sched *scheduler.Service

	httpMu  sync.Mutex
	http    *httpapi.Server
	httpCfg httpapi.Config

	runTimeout time.Duration
}

// NewApp loads cfgPath and wires every component. Nothing runs until Start
// (daemon) or RunOnce (single sweep).
func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	return newApp(cfgm, cfg)
}

func newApp(cfgm *config.ConfigManager, cfg *config.Config) (*App, error) {
	logSvc, log := logx.New(mapLogConfig(cfg), nil)
	a := &App{cfgm: cfgm, logs: logSvc, log: log.With(logx.String("comp", "app")), bus: eventbus.New()}
	ok := false
	defer func() {
		if !ok {
			a.closeResources()
			_ = a.logs.Close()
		}
	}()
	a.setAlertSender(cfg)

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	if a.store, err = storage.Open(sc, log.With(logx.String("comp", "storage"))); err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if a.store == nil {
		return nil, errors.New("storage is required")
	}
	a.log.Info("storage ready", logx.String("driver", sc.Driver))

	lc, err := mapLockConfig(cfg)
	if err != nil {
		return nil, err
	}
	if a.locker, err = lock.Open(lc); err != nil {
		return nil, fmt.Errorf("open lock: %w", err)
	}

	gc, err := mapGatewayConfig(cfg)
	if err != nil {
		return nil, err
	}
	if a.gw, err = gateway.Open(gc, log.With(logx.String("comp", "gateway"))); err != nil {
		return nil, fmt.Errorf("open gateway: %w", err)
	}
	a.gwCfg = gc

	swc, err := mapSweepConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.sweep = sweep.New(swc, sweep.Deps{
		Items:    a.store,
		Accounts: a.store,
		Runs:     a.store,
		Gateway:  a.gw,
		Locker:   a.locker,
		Bus:      a.bus,
		Log:      log,
	})

	if a.runTimeout, err = mapRunTimeout(cfg); err != nil {
		return nil, err
	}
	a.sched = scheduler.New(mapSchedulerConfig(cfg), log)
	if err := a.registerSchedules(cfg); err != nil {
		return nil, err
	}

	if a.httpCfg, err = mapHTTPConfig(cfg); err != nil {
		return nil, err
	}
	router := httpapi.NewRouter(a.sweep, a.runTimeout, a.health, log.With(logx.String("comp", "http")))
	a.http = httpapi.NewServer(router, log)
	ok = true
	return a, nil
}

// Sweep exposes the sweep service (used by the CLI's one-shot mode and tests).
func (a *App) Sweep() *sweep.Service { return a.sweep }

// RunOnce runs a single sweep bounded by the configured run timeout.
func (a *App) RunOnce(ctx context.Context, mode sweep.Mode) (expiry.RunReport, error) {
	if a.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.runTimeout)
		defer cancel()
	}
	return a.sweep.Run(ctx, mode)
}

// Done is closed when the app supervisor context is cancelled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		// Everything Apply needs must map cleanly before the config is committed.
		if _, err := mapSweepConfig(cfg); err != nil {
			return err
		}
		if _, err := mapGatewayConfig(cfg); err != nil {
			return err
		}
		if _, err := mapHTTPConfig(cfg); err != nil {
			return err
		}
		_, err := mapRunTimeout(cfg)
		return err
	})

	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
	}
	if err := a.startHTTP(); err != nil {
		return err
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				fields := []logx.Field{logx.String("type", e.Type), logx.Time("time", e.Time)}
				if info, ok := e.Data.(eventbus.SweepInfo); ok {
					fields = append(fields, logx.String("run_id", info.RunID), logx.String("mode", info.Mode))
				}
				a.log.Debug("event", fields...)
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.GoRestart("config.watch", a.cfgm.Watch, 250*time.Millisecond, 10*time.Second)

	a.log.Info("app started",
		logx.Bool("scheduler", a.sched.Enabled()),
		logx.Bool("http", a.httpCfg.Enabled),
	)
	return nil
}

func (a *App) startHTTP() error {
	a.httpMu.Lock()
	defer a.httpMu.Unlock()
	if !a.httpCfg.Enabled {
		return nil
	}
	if err := a.http.Start(a.httpCfg); err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	errs := a.http.Errors()
	a.sup.Go("http.serve", func(c context.Context) error {
		select {
		case <-c.Done():
			return nil
		case err, ok := <-errs:
			if ok && err != nil {
				return err
			}
			return nil
		}
	})
	return nil
}

func (a *App) stopHTTP(ctx context.Context) error {
	a.httpMu.Lock()
	defer a.httpMu.Unlock()
	return a.http.Stop(ctx)
}

func (a *App) health() any {
	return map[string]any{
		"supervisor": a.sup.Snapshot(),
		"schedules":  a.sched.Snapshot(),
	}
}

// registerSchedules (re)binds the sweep jobs to the configured schedules.
func (a *App) registerSchedules(cfg *config.Config) error {
	want := schedules(cfg)
	for _, mode := range []sweep.Mode{sweep.ModeReminder, sweep.ModeTest} {
		name := "sweep." + string(mode)
		spec, ok := want[mode]
		if !ok {
			a.sched.Remove(name)
			continue
		}
		if err := a.sched.Add(name, spec, a.runTimeout, func(ctx context.Context) error {
			_, err := a.sweep.Run(ctx, mode)
			if errors.Is(err, sweep.ErrLocked) {
				a.log.Info("scheduled sweep skipped; another run holds the lock", logx.String("mode", string(mode)))
				return nil
			}
			return err
		}); err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}
	}
	return nil
}

func (a *App) setAlertSender(cfg *config.Config) {
	tg := cfg.Logging.Telegram
	token := strings.TrimSpace(tg.Token)
	if !tg.Enabled || token == "" {
		a.alertToken = ""
		a.logs.SetSender(nil)
		return
	}
	if token == a.alertToken {
		return
	}
	ad, err := telegram.New(telegram.Config{Token: token}, a.log.With(logx.String("comp", "telegram")))
	if err != nil {
		a.log.Warn("telegram alerts disabled", logx.Err(err))
		a.logs.SetSender(nil)
		return
	}
	a.alertToken = token
	a.logs.SetSender(ad)
}

// applyConfig fans a committed config out to the live components.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	changed := map[string]bool{}
	for _, s := range sections {
		changed[s] = true
	}

	if changed["logging"] {
		a.setAlertSender(newCfg)
		a.logs.Apply(mapLogConfig(newCfg))
	}
	if changed["storage"] || changed["lock"] {
		a.log.Warn("storage/lock config changed; restart required for changes to take effect")
	}
	if changed["sweep"] {
		if swc, err := mapSweepConfig(newCfg); err != nil {
			a.log.Warn("invalid sweep config; keeping previous", logx.Err(err))
		} else {
			a.sweep.Apply(swc)
		}
	}
	if changed["gateway"] {
		a.reopenGateway(newCfg)
	}
	if changed["scheduler"] || changed["sweep"] {
		a.applyScheduler(ctx, newCfg)
	}
	if changed["http"] {
		a.applyHTTP(ctx, newCfg)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) reopenGateway(cfg *config.Config) {
	gc, err := mapGatewayConfig(cfg)
	if err != nil {
		a.log.Warn("invalid gateway config; keeping previous", logx.Err(err))
		return
	}
	a.gwMu.Lock()
	defer a.gwMu.Unlock()
	if reflect.DeepEqual(gc, a.gwCfg) {
		return
	}
	gw, err := gateway.Open(gc, a.log.With(logx.String("comp", "gateway")))
	if err != nil {
		a.log.Warn("gateway reopen failed; keeping previous", logx.Err(err))
		return
	}
	old := a.gw
	a.gw, a.gwCfg = gw, gc
	a.sweep.SetGateway(gw)
	// A run that already captured the old sender may still be sending.
	if old != nil {
		time.AfterFunc(a.runTimeout, func() { _ = old.Close() })
	}
	a.log.Info("gateway switched", logx.String("driver", gc.Driver))
}

func (a *App) applyScheduler(ctx context.Context, cfg *config.Config) {
	if rt, err := mapRunTimeout(cfg); err == nil {
		a.runTimeout = rt
	}
	prev := a.sched.Enabled()
	a.sched.Apply(mapSchedulerConfig(cfg))
	if err := a.registerSchedules(cfg); err != nil {
		a.log.Warn("schedule update rejected", logx.Err(err))
	}
	switch {
	case prev && !cfg.Scheduler.Enabled:
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.sched.Stop(stopCtx)
		cancel()
		a.log.Info("scheduler disabled via config")
	case !prev && cfg.Scheduler.Enabled:
		a.sched.Start(ctx)
		a.log.Info("scheduler enabled via config")
	}
}

func (a *App) applyHTTP(ctx context.Context, cfg *config.Config) {
	hc, err := mapHTTPConfig(cfg)
	if err != nil {
		a.log.Warn("invalid http config; keeping previous", logx.Err(err))
		return
	}
	stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := a.stopHTTP(stopCtx); err != nil {
		a.log.Warn("http stop failed", logx.Err(err))
	}
	a.httpMu.Lock()
	a.httpCfg = hc
	a.httpMu.Unlock()
	if err := a.startHTTP(); err != nil {
		a.log.Error("http restart failed", logx.Err(err))
	}
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.log.Info("stopping", logx.String("reason", string(reason)))

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		if err := fn(stepCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("scheduler", 5*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("http", 3*time.Second, a.stopHTTP)
	if a.sup != nil {
		step("supervisor", 2*time.Second, a.sup.Stop)
	}
	a.closeResources()

	a.log.Info("stopped")
	return a.logs.Close()
}

func (a *App) closeResources() {
	a.gwMu.Lock()
	gw := a.gw
	a.gw = nil
	a.gwMu.Unlock()
	if gw != nil {
		if err := gw.Close(); err != nil {
			a.log.Warn("gateway close failed", logx.Err(err))
		}
	}
	if a.locker != nil {
		if err := a.locker.Close(); err != nil {
			a.log.Warn("lock close failed", logx.Err(err))
		}
		a.locker = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
		a.store = nil
	}
}
