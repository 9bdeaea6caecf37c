package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expirywatch/internal/config"
	"expirywatch/internal/expiry"
	"expirywatch/internal/sweep"
)

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
}

// fixture writes a file-backed inventory relative to today (UTC) and a
// config pointing at it. It returns the config path.
func fixture(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	today := time.Now().UTC()
	day := func(off int) string { return today.AddDate(0, 0, off).Format("2006-01-02") }

	writeJSON(t, filepath.Join(dir, "inv.items.json"), []map[string]any{
		{"owner": "me", "name": "Milk", "expiry_date": day(-2), "category": "Dairy"},
		{"owner": "me", "name": "Bread", "expiry_date": day(1)},
		{"owner": "me", "name": "Rice", "expiry_date": day(90)},
		{"owner": "someone-else", "name": "Eggs", "expiry_date": day(0)},
	})
	writeJSON(t, filepath.Join(dir, "inv.accounts.json"), []map[string]any{
		{"email": "  "},
		{"email": "ops@example.com"},
		{"email": "cook@example.com"},
	})

	cfg := `
sweep:
  owner_scope: me
  timezone: UTC
scheduler:
  enabled: false
storage:
  driver: file
  path: ` + filepath.Join(dir, "inv") + `
gateway:
  driver: log
http:
  enabled: false
logging:
  level: error
  console: true
  file: {enabled: false, path: ""}
  telegram: {enabled: false}
` + extra
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(cfg), 0o600))
	return p
}

func TestRunOnceModes(t *testing.T) {
	a, err := NewApp(fixture(t, ""))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop(context.Background(), StopOnceDone) })

	rep, err := a.RunOnce(context.Background(), sweep.ModeReminder)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.DueItemCount)
	assert.Equal(t, 1, rep.ExpiredCount)
	assert.Equal(t, 1, rep.ImminentCount)
	assert.Equal(t, 1, rep.EmailsSent)
	assert.Equal(t, []expiry.Outcome{{Recipient: "ops@example.com", Succeeded: true}}, rep.PerRecipientResults)

	rep, err = a.RunOnce(context.Background(), sweep.ModeTest)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.EmailsSent)
	assert.Zero(t, rep.EmailsFailed)
}

func TestNewAppRejectsBadConfig(t *testing.T) {
	_, err := NewApp(fixture(t, "lock:\n  driver: zookeeper\n"))
	assert.ErrorContains(t, err, "lock.driver")
}

func TestMapSweepConfigOverrides(t *testing.T) {
	t.Parallel()
	seven, zero := 7, 0
	empty := ""
	stamp := false
	cfg := &config.Config{Sweep: config.SweepConfig{
		OwnerScope: " me ",
		Timezone:   "Asia/Shanghai",
		Modes: map[string]config.ModeConfig{
			"test": {
				DefaultReminderThresholdDays: &seven,
				FloorDays:                    &zero,
				RecipientSelection:           "single-primary",
				SubjectPrefix:                &empty,
				StampSendTime:                &stamp,
				From:                         "Pantry <pantry@example.com>",
			},
		},
	}}
	sc, err := mapSweepConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "me", sc.OwnerScope)
	assert.Equal(t, "Asia/Shanghai", sc.Location.String())

	test := sc.Policies[sweep.ModeTest]
	assert.Equal(t, expiry.Thresholds{DefaultReminderDays: 7, ImminentWindowDays: 5, FloorDays: 0}, test.Thresholds)
	assert.Equal(t, expiry.SinglePrimary, test.Selection)
	assert.Empty(t, test.Framing.SubjectPrefix)
	assert.Equal(t, "This is a test email", test.Framing.Banner)
	assert.False(t, test.StampSendTime)
	assert.Equal(t, "Pantry <pantry@example.com>", test.From)

	assert.Equal(t, sweep.DefaultPolicies()[sweep.ModeReminder], sc.Policies[sweep.ModeReminder])

	cfg.Sweep.Modes = map[string]config.ModeConfig{"weekly": {}}
	_, err = mapSweepConfig(cfg)
	assert.ErrorIs(t, err, sweep.ErrUnknownMode)
}

func TestSchedules(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	assert.Equal(t, map[sweep.Mode]string{sweep.ModeReminder: defaultSchedule}, schedules(cfg))

	cfg.Scheduler.Schedule = "at:07:30"
	cfg.Scheduler.TestSchedule = "12h"
	assert.Equal(t, map[sweep.Mode]string{sweep.ModeReminder: "at:07:30", sweep.ModeTest: "12h"}, schedules(cfg))
}

func TestApplyConfigReschedules(t *testing.T) {
	path := fixture(t, "")
	a, err := NewApp(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop(context.Background(), StopOnceDone) })

	snap := a.sched.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "sweep.reminder", snap[0].Name)

	oldCfg := a.cfgm.Get()
	newCfg := *oldCfg
	newCfg.Scheduler.TestSchedule = "at:09:15"
	newCfg.Sweep.Modes = map[string]config.ModeConfig{"reminder": {RecipientSelection: "broadcast-all"}}
	a.applyConfig(context.Background(), oldCfg, &newCfg)

	snap = a.sched.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "sweep.test", snap[1].Name)
	assert.Equal(t, "15 9 * * *", snap[1].Spec)

	rep, err := a.RunOnce(context.Background(), sweep.ModeReminder)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.EmailsSent)
}
