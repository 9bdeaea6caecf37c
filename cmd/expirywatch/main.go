package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"expirywatch/internal/app"
	"expirywatch/internal/expiry"
	"expirywatch/internal/sweep"
)

func main() {
	var (
		cfgPath string
		once    bool
		mode    string
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config (yaml or json)")
	flag.BoolVar(&once, "once", false, "run a single sweep, print the report and exit")
	flag.StringVar(&mode, "mode", "reminder", "sweep mode for -once: reminder or test")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.NewApp(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	if once {
		os.Exit(runOnce(ctx, a, mode))
	}

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		_ = a.Stop(context.Background(), app.StopFatalError)
		os.Exit(1)
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	reason := app.StopSIGTERM
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	if err := a.Err(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

// runOnce prints the report as JSON. Exit code 2 means the run was aborted.
func runOnce(ctx context.Context, a *app.App, raw string) int {
	defer func() { _ = a.Stop(context.Background(), app.StopOnceDone) }()

	m, err := sweep.ParseMode(raw)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return 1
	}
	rep, runErr := a.RunOnce(ctx, m)

	var body any = rep
	if runErr != nil {
		body = struct {
			Error string `json:"error"`
			expiry.RunReport
		}{runErr.Error(), rep}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(body); err != nil {
		fmt.Fprintln(os.Stderr, "encode report:", err)
		return 1
	}
	if runErr != nil {
		return 2
	}
	return 0
}
