package metrics_test

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: request r1", domain.ErrStaleState), "stale_state"},
		{fmt.Errorf("%w: QA", domain.ErrChecklistIncomplete), "checklist_incomplete"},
		{domain.ErrRequestNotFound, "not_found"},
		{domain.ErrPermissionDenied, "permission_denied"},
		{errors.New("connection reset"), "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, metrics.Reason(tt.err))
		})
	}
}

func TestMetrics(t *testing.T) {
	m := metrics.New()

	m.RecordTransition(domain.EventTypeApproved)
	m.RecordTransition(domain.EventTypeApproved)
	m.RecordTransitionError(domain.EventTypeAutoApproved, domain.ErrChecklistIncomplete)
	m.RecordSweepTask("auto_approve", "deferred")
	m.ObserveSweep("auto_approve", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransitionErrorsTotal.WithLabelValues("auto_approved", "checklist_incomplete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepTasksTotal.WithLabelValues("auto_approve", "deferred")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `taskgate_transitions_total{type="approved"} 2`)
	assert.Contains(t, string(body), "taskgate_sweep_duration_seconds_bucket")
}
