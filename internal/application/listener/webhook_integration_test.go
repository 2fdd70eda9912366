package listener

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/approvals/internal/application/settings"
	"github.com/garyjia/approvals/internal/infrastructure/external/webhook"
)

func TestWebhookListener_OneEndpointDownOtherReceives(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	received := make(chan map[string]interface{}, 1)
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]interface{}
		_ = json.Unmarshal(body, &payload)
		received <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	resolver := settings.NewResolver(settings.DefaultValues(), map[string]map[string]interface{}{
		"post": {
			"events_webhooks_enabled": true,
			"events_webhooks_endpoints": []interface{}{
				map[string]interface{}{"url": slow.URL},
				map[string]interface{}{"url": healthy.URL},
			},
		},
	})

	logger := newMockLogger()
	client := webhook.NewClient(nil, "approvals-test", zap.NewNop())
	l := NewWebhookListener(resolver, client, logger, WithTimeout(50*time.Millisecond))

	err := l.Handle(context.Background(), rejectedEvent("post"))
	require.NoError(t, err)

	select {
	case payload := <-received:
		assert.Equal(t, "model_rejected", payload["event"])
		assert.Equal(t, "12", payload["subject_id"])
	default:
		t.Fatal("healthy endpoint did not receive the event")
	}

	warns := logger.byLevel("warn")
	require.Len(t, warns, 1)
	assert.Equal(t, "Webhook failed to dispatch.", warns[0].msg)
	assert.Equal(t, slow.URL, warns[0].fields["url"])
}
