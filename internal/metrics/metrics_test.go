package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetConnections(1)
		m.SetRooms(1)
		m.SetMembers(1)
		m.RecordJoin()
		m.RecordJoinRejected()
		m.RecordLeave()
		m.RecordSignal(true)
		m.RecordBackpressure()
		m.RecordLedgerWrite("open", nil)
		m.RecordLedgerQueueDrop()
		m.AddLedgerPending(2)
	})
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SetMembers(3)
	m.RecordSignal(true)
	m.RecordSignal(false)
	m.RecordSignal(false)
	m.RecordLedgerWrite("close", nil)
	m.RecordLedgerWrite("close", errors.New("down"))
	m.AddLedgerPending(3)
	m.AddLedgerPending(-1)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.members))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.signalsRelayed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.signalsDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerWrites.WithLabelValues("close", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ledgerPending))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "interview_signals_dropped_total 2")
	assert.Contains(t, rec.Body.String(), "interview_members 3")
}
