package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRecordCounters(t *testing.T) {
	RecordDispatch("metrics-test", 2, 1)
	assert.Equal(t, float64(2), counterValue(t, EmailsDispatched.WithLabelValues("metrics-test", "success")))
	assert.Equal(t, float64(1), counterValue(t, EmailsDispatched.WithLabelValues("metrics-test", "failed")))

	RecordClassified("metrics-test", 4, 2, 1)
	assert.Equal(t, float64(4), counterValue(t, ItemsClassified.WithLabelValues("metrics-test", "due")))
	assert.Equal(t, float64(1), counterValue(t, ItemsClassified.WithLabelValues("metrics-test", "imminent")))

	RecordSweep("metrics-test", "ok", 150*time.Millisecond)
	assert.Equal(t, float64(1), counterValue(t, SweepRuns.WithLabelValues("metrics-test", "ok")))
}
