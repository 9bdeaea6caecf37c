package sweep

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"expirywatch/internal/eventbus"
	"expirywatch/internal/expiry"
	"expirywatch/internal/gateway"
	"expirywatch/internal/lock"
	"expirywatch/internal/metrics"
	"expirywatch/internal/storage"
	logx "expirywatch/pkg/logx"
)

type ItemRepository interface {
	ListItems(ctx context.Context, ownerScope string) ([]expiry.Item, error)
}

type AccountDirectory interface {
	ListAccounts(ctx context.Context) ([]expiry.Account, error)
}

type RunRecorder interface {
	AppendRun(ctx context.Context, r storage.RunRecord) error
}

// Deps are the collaborators of a sweep. Runs, Locker and Bus are optional.
type Deps struct {
	Items    ItemRepository
	Accounts AccountDirectory
	Gateway  gateway.Sender
	Runs     RunRecorder
	Locker   lock.Locker
	Bus      eventbus.Bus
	Clock    expiry.Clock
	Log      logx.Logger
}

type Service struct {
	log logx.Logger

	mu   sync.RWMutex
	cfg  Config
	deps Deps
}

func New(cfg Config, deps Deps) *Service {
	if deps.Clock == nil {
		deps.Clock = expiry.SystemClock{}
	}
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Policies == nil {
		cfg.Policies = DefaultPolicies()
	}
	return &Service{log: log.With(logx.String("comp", "sweep")), cfg: cfg, deps: deps}
}

// Apply swaps the configuration used by subsequent runs.
func (s *Service) Apply(cfg Config) {
	if cfg.Policies == nil {
		cfg.Policies = DefaultPolicies()
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// SetGateway swaps the email gateway used by subsequent runs.
func (s *Service) SetGateway(g gateway.Sender) {
	s.mu.Lock()
	s.deps.Gateway = g
	s.mu.Unlock()
}

func (s *Service) snapshot() (Config, Deps) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, s.deps
}

// Run executes one sweep in the given mode.
//
// A non-nil error means the run was aborted; the returned report still
// carries whatever had been computed (at least its timestamp). Per-recipient
// delivery failures are not errors; they are counted in the report.
func (s *Service) Run(ctx context.Context, mode Mode) (rep expiry.RunReport, err error) {
	cfg, deps := s.snapshot()
	policy, ok := cfg.Policies[mode]
	if !ok {
		return expiry.RunReport{PerRecipientResults: []expiry.Outcome{}, Timestamp: deps.Clock.Now()}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	if deps.Locker != nil {
		release, lerr := deps.Locker.TryAcquire(ctx, string(mode))
		if lerr != nil {
			metrics.RecordSweep(string(mode), "locked", 0)
			rep := expiry.RunReport{PerRecipientResults: []expiry.Outcome{}, Timestamp: deps.Clock.Now()}
			if errors.Is(lerr, lock.ErrHeld) {
				return rep, ErrLocked
			}
			return rep, fmt.Errorf("sweep: acquire lock: %w", lerr)
		}
		defer release()
	}

	runID := uuid.NewString()
	started := deps.Clock.Now()
	log := s.log.With(logx.String("run_id", runID), logx.String("mode", string(mode)))
	publish(deps.Bus, eventbus.SweepStarted, eventbus.SweepInfo{RunID: runID, Mode: string(mode)})
	log.Debug("sweep started")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrUnexpected, r)
			rep.Timestamp = deps.Clock.Now()
			if rep.PerRecipientResults == nil {
				rep.PerRecipientResults = []expiry.Outcome{}
			}
		}
		s.finish(ctx, deps, log, runID, mode, started, rep, err)
	}()

	return s.run(ctx, cfg, deps, policy, log)
}

func (s *Service) run(ctx context.Context, cfg Config, deps Deps, policy Policy, log logx.Logger) (expiry.RunReport, error) {
	empty := func() expiry.RunReport {
		return expiry.Aggregate(expiry.ClassifiedSet{}, nil, deps.Clock.Now())
	}
	owner := strings.TrimSpace(cfg.OwnerScope)
	if owner == "" {
		return empty(), ErrNoOwnerScope
	}
	if deps.Items == nil || deps.Accounts == nil {
		return empty(), errors.New("sweep: storage is not configured")
	}

	items, err := deps.Items.ListItems(ctx, owner)
	if err != nil {
		return empty(), &UpstreamError{Source: "items", Err: err}
	}
	accounts, err := deps.Accounts.ListAccounts(ctx)
	if err != nil {
		return empty(), &UpstreamError{Source: "accounts", Err: err}
	}

	ref := deps.Clock.Now().In(cfg.location())
	set := expiry.Classify(items, ref, policy.Thresholds)
	log.Debug("classified",
		logx.Int("items", len(items)),
		logx.Int("due", set.Due),
		logx.Int("expired", len(set.Expired)),
		logx.Int("imminent", len(set.Imminent)),
	)
	if set.Due == 0 {
		return expiry.Aggregate(set, nil, deps.Clock.Now()), nil
	}

	recipients := expiry.ResolveRecipients(accounts, policy.Selection)
	if len(recipients) == 0 {
		log.Info("no recipient with an email address; nothing sent", logx.Int("accounts", len(accounts)))
		return expiry.Aggregate(set, nil, deps.Clock.Now()), nil
	}
	if deps.Gateway == nil {
		return expiry.Aggregate(set, nil, deps.Clock.Now()), ErrNoGateway
	}

	framing := policy.Framing
	if policy.StampSendTime {
		framing.Note = sendTimeNote(ref)
	}
	msg := expiry.Compose(set, framing)

	gw := deps.Gateway
	outcomes := expiry.Dispatch(ctx, recipients, msg, func(ctx context.Context, rcpt string, m expiry.Message) error {
		return gw.Send(ctx, gateway.Email{
			From:    policy.From,
			To:      rcpt,
			Subject: m.Subject,
			Text:    m.Text,
			HTML:    m.HTML,
		})
	})
	for _, o := range outcomes {
		if !o.Succeeded {
			log.Warn("delivery failed", logx.String("to", o.Recipient), logx.String("error", o.ErrorDetail))
		}
	}
	return expiry.Aggregate(set, outcomes, deps.Clock.Now()), nil
}

func (s *Service) finish(ctx context.Context, deps Deps, log logx.Logger, runID string, mode Mode, started time.Time, rep expiry.RunReport, err error) {
	took := deps.Clock.Now().Sub(started)
	info := eventbus.SweepInfo{
		RunID:    runID,
		Mode:     string(mode),
		Due:      rep.DueItemCount,
		Sent:     rep.EmailsSent,
		Failed:   rep.EmailsFailed,
		Duration: took,
	}
	rec := storage.RunRecord{
		ID:         runID,
		Mode:       string(mode),
		StartedAt:  started,
		FinishedAt: rep.Timestamp,
		Due:        rep.DueItemCount,
		Expired:    rep.ExpiredCount,
		Imminent:   rep.ImminentCount,
		Sent:       rep.EmailsSent,
		Failed:     rep.EmailsFailed,
	}

	if err != nil {
		info.Err = err.Error()
		rec.Error = err.Error()
		metrics.RecordSweep(string(mode), "failed", took)
		publish(deps.Bus, eventbus.SweepFailed, info)
		log.Error("sweep failed", logx.Err(err), logx.Duration("took", took))
	} else {
		metrics.RecordSweep(string(mode), "ok", took)
		metrics.RecordClassified(string(mode), rep.DueItemCount, rep.ExpiredCount, rep.ImminentCount)
		metrics.RecordDispatch(string(mode), rep.EmailsSent, rep.EmailsFailed)
		publish(deps.Bus, eventbus.SweepFinished, info)
		log.Info("sweep finished",
			logx.Int("due", rep.DueItemCount),
			logx.Int("expired", rep.ExpiredCount),
			logx.Int("imminent", rep.ImminentCount),
			logx.Int("sent", rep.EmailsSent),
			logx.Int("failed", rep.EmailsFailed),
			logx.Duration("took", took),
		)
	}

	if deps.Runs != nil {
		// Record history even if the trigger's context was cancelled.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if rerr := deps.Runs.AppendRun(rctx, rec); rerr != nil {
			log.Warn("append run history failed", logx.Err(rerr))
		}
	}
}

func publish(bus eventbus.Bus, typ string, info eventbus.SweepInfo) {
	if bus == nil {
		return
	}
	bus.Publish(eventbus.Event{Type: typ, Data: info})
}
