package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.TransitionCompleted("post", "approved")
	m.TransitionCompleted("post", "approved")
	m.TransitionFailed("post", "reject", "unauthorized")
	m.EventDispatched("model_approved", "post")
	m.WebhookDelivered("model_approved", false, 20*time.Millisecond)
	m.CustomActionFailed("reindex")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.transitions.WithLabelValues("post", "approved")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.transitionFailures.WithLabelValues("post", "reject", "unauthorized")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.events.WithLabelValues("model_approved", "post")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.webhookDeliveries.WithLabelValues("model_approved", "failure")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.webhookDeliveries.WithLabelValues("model_approved", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.customActionErrors.WithLabelValues("reindex")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.TransitionCompleted("video", "rejected")

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `approvals_transitions_total{status="rejected",subject_type="video"} 1`)
}

func TestNew_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
