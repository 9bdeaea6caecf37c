package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expirywatch/internal/expiry"
	"expirywatch/internal/sweep"
	logx "expirywatch/pkg/logx"
)

type fakeRunner struct {
	mu    sync.Mutex
	modes []sweep.Mode
	rep   expiry.RunReport
	err   error
	ctxOK bool
}

func (f *fakeRunner) Run(ctx context.Context, mode sweep.Mode) (expiry.RunReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modes = append(f.modes, mode)
	_, f.ctxOK = ctx.Deadline()
	return f.rep, f.err
}

var ts = time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)

func do(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	var body map[string]any
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &body)
	}
	return w, body
}

func TestTriggerModesAndVerbs(t *testing.T) {
	t.Parallel()
	fr := &fakeRunner{rep: expiry.RunReport{
		DueItemCount: 2, ExpiredCount: 1, ImminentCount: 1, EmailsSent: 1,
		PerRecipientResults: []expiry.Outcome{{Recipient: "a@x.io", Succeeded: true}},
		Timestamp:           ts,
	}}
	h := NewRouter(fr, time.Minute, nil, logx.Nop())

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodPost, "/sweep", http.StatusOK},
		{http.MethodGet, "/sweep", http.StatusMethodNotAllowed},
		{http.MethodPut, "/sweep", http.StatusMethodNotAllowed},
		{http.MethodGet, "/sweep/test", http.StatusOK},
		{http.MethodPost, "/sweep/test", http.StatusOK},
		{http.MethodDelete, "/sweep/test", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		w, _ := do(t, h, tt.method, tt.path)
		assert.Equal(t, tt.want, w.Code, "%s %s", tt.method, tt.path)
	}
	assert.Equal(t, []sweep.Mode{sweep.ModeReminder, sweep.ModeTest, sweep.ModeTest}, fr.modes)
	assert.True(t, fr.ctxOK)
}

func TestTriggerReportBody(t *testing.T) {
	t.Parallel()
	fr := &fakeRunner{rep: expiry.RunReport{
		DueItemCount: 3, ExpiredCount: 1, ImminentCount: 1, EmailsSent: 2, EmailsFailed: 1,
		PerRecipientResults: []expiry.Outcome{
			{Recipient: "a@x.io", Succeeded: true},
			{Recipient: "b@x.io", Succeeded: false, ErrorDetail: "550 mailbox unavailable"},
			{Recipient: "c@x.io", Succeeded: true},
		},
		Timestamp: ts,
	}}
	w, body := do(t, NewRouter(fr, 0, nil, logx.Nop()), http.MethodPost, "/sweep")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, body["dueItemCount"])
	assert.EqualValues(t, 2, body["emailsSent"])
	assert.EqualValues(t, 1, body["emailsFailed"])
	results := body["perRecipientResults"].([]any)
	require.Len(t, results, 3)
	assert.Equal(t, "550 mailbox unavailable", results[1].(map[string]any)["error"])
	assert.NotContains(t, body, "error")
}

func TestTriggerAbortedRun(t *testing.T) {
	t.Parallel()
	upstream := &sweep.UpstreamError{Source: "items", Err: errors.New("connection refused")}
	fr := &fakeRunner{rep: expiry.RunReport{Timestamp: ts}, err: upstream}
	w, body := do(t, NewRouter(fr, 0, nil, logx.Nop()), http.MethodPost, "/sweep")

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, body["error"], "connection refused")
	assert.EqualValues(t, 0, body["emailsSent"])
	assert.Equal(t, []any{}, body["perRecipientResults"])
	assert.Contains(t, body, "timestamp")
}

func TestTriggerLocked(t *testing.T) {
	t.Parallel()
	fr := &fakeRunner{err: sweep.ErrLocked}
	w, body := do(t, NewRouter(fr, 0, nil, logx.Nop()), http.MethodGet, "/sweep/test")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, sweep.ErrLocked.Error(), body["error"])
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	h := NewRouter(&fakeRunner{}, 0, func() any { return map[string]int{"loops": 2} }, logx.Nop())

	w, body := do(t, h, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, map[string]any{"loops": float64(2)}, body["details"])

	do(t, h, http.MethodPost, "/sweep")
	w, _ = do(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "expirywatch_http_request_duration_seconds")
}

func TestServerStartStop(t *testing.T) {
	t.Parallel()
	srv := NewServer(NewRouter(&fakeRunner{}, 0, nil, logx.Nop()), logx.Nop())
	require.NoError(t, srv.Start(Config{Enabled: true, Addr: "127.0.0.1:0"}))
	addr := srv.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	errs := srv.Errors()
	require.NoError(t, srv.Stop(ctx))
	assert.Empty(t, srv.Addr())
	_, open := <-errs
	assert.False(t, open)
}
