package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.CycleStarted()
	m.CycleFinished("completed")
	m.Sample("accepted")
	m.Sample("accepted")
	m.Sample("too_similar")
	m.Decision("match", 85, true)
	m.Decision("enrollment", 0, false)
	m.OracleCall(50*time.Millisecond, nil)
	m.OracleCall(10*time.Millisecond, errors.New("timeout"))
	m.TickDropped()
	m.SessionOpened()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesFinished.WithLabelValues("completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Samples.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues("match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OracleErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedTicks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Confidence))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CycleStarted()
		m.CycleFinished("aborted")
		m.Sample("accepted")
		m.Decision("match", 90, true)
		m.OracleCall(time.Second, nil)
		m.TickDropped()
		m.SessionOpened()
		m.SessionClosed()
	})
}
