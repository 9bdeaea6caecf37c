// Package httpapi exposes the sweep trigger over HTTP.
//
//	POST      /sweep       reminder mode
//	GET|POST  /sweep/test  test mode
//	GET       /healthz
//	GET       /metrics     Prometheus exposition
//
// A run that completes answers 200 with the report, even when some
// recipients failed. An aborted run answers 500 with the error next to the
// report fields; a run refused because another one holds the lock answers 409.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"expirywatch/internal/expiry"
	"expirywatch/internal/metrics"
	"expirywatch/internal/sweep"
	logx "expirywatch/pkg/logx"
)

// Runner runs one sweep. *sweep.Service implements it.
type Runner interface {
	Run(ctx context.Context, mode sweep.Mode) (expiry.RunReport, error)
}

// HealthFunc returns extra details for /healthz. May be nil.
type HealthFunc func() any

type errorBody struct {
	Error string `json:"error"`
	expiry.RunReport
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// NewRouter builds the gin engine. runTimeout bounds a triggered run; the
// run is detached from the client connection so a dropped request does not
// abort dispatch halfway.
func NewRouter(runner Runner, runTimeout time.Duration, health HealthFunc, log logx.Logger) *gin.Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), observe(log))
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	reminder := trigger(runner, sweep.ModeReminder, runTimeout, log)
	test := trigger(runner, sweep.ModeTest, runTimeout, log)
	r.POST("/sweep", reminder)
	r.GET("/sweep/test", test)
	r.POST("/sweep/test", test)

	r.GET("/healthz", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if health != nil {
			body["details"] = health()
		}
		c.JSON(http.StatusOK, body)
	})
	r.HEAD("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func trigger(runner Runner, mode sweep.Mode, runTimeout time.Duration, log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithoutCancel(c.Request.Context())
		if runTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, runTimeout)
			defer cancel()
		}

		rep, err := runner.Run(ctx, mode)
		if rep.PerRecipientResults == nil {
			rep.PerRecipientResults = []expiry.Outcome{}
		}
		if err == nil {
			c.JSON(http.StatusOK, rep)
			return
		}

		status := http.StatusInternalServerError
		if errors.Is(err, sweep.ErrLocked) {
			status = http.StatusConflict
		}
		log.Warn("triggered sweep aborted", logx.String("mode", string(mode)), logx.Int("status", status), logx.Err(err))
		c.JSON(status, errorBody{Error: err.Error(), RunReport: rep})
	}
}

// observe records request latency and logs each request at debug.
func observe(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		took := time.Since(start)
		status := c.Writer.Status()
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(status), took)
		log.Debug("http request",
			logx.String("method", c.Request.Method),
			logx.String("path", path),
			logx.Int("status", status),
			logx.Duration("took", took),
		)
	}
}
