package settings

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/approvals/internal/domain/approval"
)

func newTestResolver(types map[string]map[string]interface{}) *Resolver {
	return NewResolver(DefaultValues(), types)
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(
		map[string]interface{}{"mode": "insert", "events_enabled": true},
		map[string]map[string]interface{}{
			"Post": {"mode": "upsert"},
		},
	)

	tests := []struct {
		name        string
		subjectType string
		key         Key
		fallback    interface{}
		want        interface{}
	}{
		{"type override wins", "post", KeyMode, "x", "upsert"},
		{"type name is case-insensitive", "POST", KeyMode, "x", "upsert"},
		{"falls back to global default", "post", KeyEventsEnabled, false, true},
		{"unknown type uses global default", "comment", KeyMode, "x", "insert"},
		{"missing everywhere uses fallback", "post", KeyActorType, "admin", "admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.subjectType, tt.key, tt.fallback))
			// identical inputs, identical outputs
			assert.Equal(t, tt.want, r.Resolve(tt.subjectType, tt.key, tt.fallback))
		})
	}
}

func TestResolver_SnapshotIsolation(t *testing.T) {
	defaults := map[string]interface{}{"mode": "insert"}
	types := map[string]map[string]interface{}{"post": {"mode": "upsert"}}
	r := NewResolver(defaults, types)

	defaults["mode"] = "upsert"
	types["post"]["mode"] = "insert"

	assert.Equal(t, "insert", r.Resolve("comment", KeyMode, nil))
	assert.Equal(t, "upsert", r.Resolve("post", KeyMode, nil))
}

func TestResolver_Mode(t *testing.T) {
	r := newTestResolver(map[string]map[string]interface{}{
		"post":    {"mode": "upsert"},
		"comment": {"mode": "append"},
	})

	mode, err := r.Mode("post")
	require.NoError(t, err)
	assert.Equal(t, ModeUpsert, mode)

	mode, err = r.Mode("video")
	require.NoError(t, err)
	assert.Equal(t, ModeInsert, mode)

	_, err = r.Mode("comment")
	require.Error(t, err)
	assert.True(t, errors.Is(err, approval.ErrInvalidStatus))
	assert.True(t, errors.Is(err, approval.ErrConfig))
}

func TestResolver_UnauditedStatus(t *testing.T) {
	r := newTestResolver(map[string]map[string]interface{}{
		"post":    {"default_status_for_unaudited": "approved"},
		"comment": {"default_status_for_unaudited": "bogus"},
		"video":   {"default_status_for_unaudited": nil},
	})

	status, err := r.UnauditedStatus("post")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, approval.StatusApproved, *status)

	status, err = r.UnauditedStatus("video")
	require.NoError(t, err)
	assert.Nil(t, status)

	status, err = r.UnauditedStatus("unknown")
	require.NoError(t, err)
	assert.Nil(t, status)

	_, err = r.UnauditedStatus("comment")
	assert.True(t, errors.Is(err, approval.ErrInvalidStatus))
}

func TestResolver_RejectionReasons(t *testing.T) {
	r := newTestResolver(map[string]map[string]interface{}{
		"post": {"rejection_reasons": map[string]interface{}{"spam": "Spam", "copyright": "Copyright"}},
	})

	defaults := r.RejectionReasons("comment")
	require.Len(t, defaults, 5)
	assert.Equal(t, "inappropriate_content", defaults[0].Code)
	assert.Equal(t, "other", defaults[4].Code)

	post := r.RejectionReasons("post")
	assert.Equal(t, []Reason{{Code: "copyright", Label: "Copyright"}, {Code: "spam", Label: "Spam"}}, post)

	assert.True(t, r.HasReason("post", "spam"))
	assert.False(t, r.HasReason("post", "Spam"))
	assert.False(t, r.HasReason("post", "duplicate"))
	assert.True(t, r.HasReason("comment", "duplicate"))
	assert.Equal(t, []string{"copyright", "spam"}, r.ReasonCodes("post"))
}

func TestResolver_Webhooks(t *testing.T) {
	r := newTestResolver(map[string]map[string]interface{}{
		"post": {
			"events_webhooks_enabled": true,
			"events_webhooks_endpoints": []interface{}{
				map[string]interface{}{
					"url":     "https://hooks.example.com/a",
					"headers": map[string]interface{}{"Authorization": "Bearer x"},
					"events":  []interface{}{"model_approved"},
				},
				map[string]interface{}{"url": "https://hooks.example.com/b"},
			},
		},
	})

	endpoints := r.Webhooks("post")
	require.Len(t, endpoints, 2)
	assert.Equal(t, "Bearer x", endpoints[0].Headers["Authorization"])
	assert.True(t, endpoints[0].Accepts("model_approved"))
	assert.False(t, endpoints[0].Accepts("model_rejected"))
	assert.True(t, endpoints[1].Accepts("model_rejected"))

	assert.Empty(t, r.Webhooks("comment"))
	assert.True(t, r.Bool("post", KeyWebhooksEnabled, false))
	assert.False(t, r.Bool("comment", KeyWebhooksEnabled, true))
}

func TestResolver_CustomActions(t *testing.T) {
	r := newTestResolver(map[string]map[string]interface{}{
		"post": {
			"events_custom_actions": map[string]interface{}{
				"model_approved": []interface{}{"reindex", "notify_slack"},
			},
		},
	})

	assert.Equal(t, []string{"reindex", "notify_slack"}, r.CustomActions("post", "model_approved"))
	assert.Empty(t, r.CustomActions("post", "model_rejected"))
	assert.Empty(t, r.CustomActions("comment", "model_approved"))
}

func TestResolver_Bool_Lenient(t *testing.T) {
	r := newTestResolver(map[string]map[string]interface{}{
		"post":    {"events_enabled": "false"},
		"comment": {"events_enabled": "nope"},
	})

	assert.False(t, r.Bool("post", KeyEventsEnabled, true))
	assert.True(t, r.Bool("comment", KeyEventsEnabled, true))
	assert.True(t, r.Bool("video", KeyEventsEnabled, false))
}

func TestResolver_SubjectTypes(t *testing.T) {
	r := newTestResolver(map[string]map[string]interface{}{
		"Video": {}, "post": {}, "comment": {},
	})
	assert.Equal(t, []string{"comment", "post", "video"}, r.SubjectTypes())
	assert.True(t, r.IsConfigured("VIDEO"))
	assert.False(t, r.IsConfigured("image"))
}
