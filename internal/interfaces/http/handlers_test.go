package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/approvals/internal/config"
	"github.com/garyjia/approvals/internal/container"
	"github.com/garyjia/approvals/internal/domain/approval"
)

type mockLogger struct{}

func (mockLogger) Info(string, ...interface{})  {}
func (mockLogger) Warn(string, ...interface{})  {}
func (mockLogger) Error(string, ...interface{}) {}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testAPI struct {
	t      *testing.T
	server *Server
}

func newTestAPI(t *testing.T, types map[string]interface{}) *testAPI {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Port: 8080},
		Database: config.DatabaseConfig{
			Driver:       "sqlite3",
			Path:         filepath.Join(t.TempDir(), "approvals.db"),
			MaxOpenConns: 4,
		},
		Approvals: config.ApprovalsConfig{Types: types},
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	c, err := container.NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	svc := c.Services()
	server := NewServer(DefaultServerConfig(), Services{
		Approvals:  svc.Approval,
		Subjects:   svc.Subject,
		Statistics: svc.Statistics,
		Health: func(ctx context.Context) (bool, interface{}) {
			h := c.Health(ctx)
			return h.Overall, h.Components
		},
		Metrics: c.Metrics().Handler(),
	}, mockLogger{})
	return &testAPI{t: t, server: server}
}

func (a *testAPI) do(method, path string, body interface{}, headers ...string) (int, apiResponse) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.server.Router().ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestHealthCheck(t *testing.T) {
	api := newTestAPI(t, nil)

	code, resp := api.do(http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, code)
	health := decode[HealthResponse](t, resp.Data)
	assert.Equal(t, "healthy", health.Status)
	assert.NotNil(t, health.Components)
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	api.server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestSubjectLifecycle(t *testing.T) {
	api := newTestAPI(t, map[string]interface{}{
		"post": map[string]interface{}{
			"rejection_reasons": map[string]interface{}{"spam": "Spam"},
		},
	})

	code, resp := api.do(http.MethodPost, "/api/subjects", map[string]interface{}{"type": "post", "id": "1", "owner_id": "u-1"})
	require.Equal(t, http.StatusCreated, code, resp.Error)
	created := decode[RegisterSubjectResponse](t, resp.Data)
	assert.Equal(t, "u-1", *created.Subject.OwnerID)
	assert.Nil(t, created.Approval)

	code, _ = api.do(http.MethodPost, "/api/subjects", map[string]interface{}{"type": "post", "id": "1"})
	assert.Equal(t, http.StatusConflict, code)

	code, resp = api.do(http.MethodGet, "/api/subjects/post/1/status", nil)
	require.Equal(t, http.StatusOK, code)
	status := decode[StatusResponse](t, resp.Data)
	assert.Nil(t, status.Status)
	assert.Nil(t, status.Latest)

	code, resp = api.do(http.MethodPost, "/api/subjects/post/1/reject",
		map[string]interface{}{"reason": "too many links", "comment": "see rules"},
		ActorHeader, "mod-7")
	require.Equal(t, http.StatusOK, code, resp.Error)
	rejected := decode[approval.Record](t, resp.Data)
	assert.Equal(t, approval.StatusRejected, rejected.Status)
	assert.Equal(t, "other", *rejected.RejectionReason)
	assert.Equal(t, "too many links - see rules", *rejected.RejectionComment)
	assert.Equal(t, "mod-7", *rejected.ActorID)

	code, resp = api.do(http.MethodPost, "/api/subjects/post/1/approve",
		map[string]interface{}{"actor_id": "mod-8"},
		ActorHeader, "mod-7")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "mod-8", *decode[approval.Record](t, resp.Data).ActorID)

	code, resp = api.do(http.MethodGet, "/api/subjects/post/1/status", nil)
	require.Equal(t, http.StatusOK, code)
	status = decode[StatusResponse](t, resp.Data)
	assert.True(t, status.IsApproved)
	assert.False(t, status.IsRejected)

	code, resp = api.do(http.MethodGet, "/api/subjects/post/1/history", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]approval.Record](t, resp.Data), 2)

	code, _ = api.do(http.MethodDelete, "/api/subjects/post/1", nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = api.do(http.MethodGet, "/api/subjects/post/1", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestReject_ReasonMatchesConfiguredKeyExactly(t *testing.T) {
	api := newTestAPI(t, map[string]interface{}{
		"post": map[string]interface{}{
			"rejection_reasons": map[string]interface{}{"spam": "Spam"},
		},
	})
	code, _ := api.do(http.MethodPost, "/api/subjects", map[string]interface{}{"type": "post", "id": "1"})
	require.Equal(t, http.StatusCreated, code)

	tests := []struct {
		name        string
		reason      string
		comment     string
		wantReason  string
		wantComment string
	}{
		{"configured key", "spam", "  keep spacing ", "spam", "  keep spacing "},
		{"padded key is not configured", " spam", "x", "other", " spam - x"},
		{"case differs", "Spam", "x", "other", "Spam - x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := api.do(http.MethodPost, "/api/subjects/post/1/reject",
				map[string]interface{}{"reason": tt.reason, "comment": tt.comment})
			require.Equal(t, http.StatusOK, code, resp.Error)
			record := decode[approval.Record](t, resp.Data)
			assert.Equal(t, tt.wantReason, *record.RejectionReason)
			assert.Equal(t, tt.wantComment, *record.RejectionComment)
		})
	}
}

func TestTransition_EmptyBodyAndUnknownSubject(t *testing.T) {
	api := newTestAPI(t, nil)
	_, _ = api.do(http.MethodPost, "/api/subjects", map[string]interface{}{"type": "video", "id": "9"})

	req := httptest.NewRequest(http.MethodPost, "/api/subjects/video/9/pending", nil)
	w := httptest.NewRecorder()
	api.server.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	code, _ := api.do(http.MethodPost, "/api/subjects/video/404/approve", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestListSubjects(t *testing.T) {
	api := newTestAPI(t, map[string]interface{}{
		"post": map[string]interface{}{"show_only_approved_by_default": true},
	})
	for _, id := range []string{"1", "2", "3"} {
		code, _ := api.do(http.MethodPost, "/api/subjects", map[string]interface{}{"type": "post", "id": id})
		require.Equal(t, http.StatusCreated, code)
	}
	code, _ := api.do(http.MethodPost, "/api/subjects/post/2/approve", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = api.do(http.MethodPost, "/api/subjects/post/3/reject", nil)
	require.Equal(t, http.StatusOK, code)

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantIDs  []string
	}{
		{"default hides unapproved", "type=post", http.StatusOK, []string{"2"}},
		{"include unapproved", "type=post&scope=include_unapproved", http.StatusOK, []string{"1", "2", "3"}},
		{"by status", "type=post&status=rejected", http.StatusOK, []string{"3"}},
		{"missing type", "", http.StatusBadRequest, nil},
		{"unknown mode", "type=post&scope=everything", http.StatusBadRequest, nil},
		{"unknown status", "type=post&status=maybe", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := api.do(http.MethodGet, "/api/subjects?"+tt.query, nil)
			require.Equal(t, tt.wantCode, code, resp.Error)
			if tt.wantIDs == nil {
				return
			}
			var ids []string
			for _, s := range decode[[]approval.Subject](t, resp.Data) {
				ids = append(ids, s.ID)
			}
			assert.ElementsMatch(t, tt.wantIDs, ids)
		})
	}
}

func TestStatistics(t *testing.T) {
	api := newTestAPI(t, map[string]interface{}{
		"post": map[string]interface{}{},
	})
	for i := 1; i <= 4; i++ {
		id := fmt.Sprint(i)
		_, _ = api.do(http.MethodPost, "/api/subjects", map[string]interface{}{"type": "post", "id": id, "created_at": "2026-03-10T12:00:00Z"})
	}
	_, _ = api.do(http.MethodPost, "/api/subjects/post/1/approve", nil)
	_, _ = api.do(http.MethodPost, "/api/subjects/post/2/reject", map[string]interface{}{"reason": "spam"})

	code, resp := api.do(http.MethodGet, "/api/statistics?type=post", nil)
	require.Equal(t, http.StatusOK, code)
	stats := decode[map[string]interface{}](t, resp.Data)
	assert.EqualValues(t, 4, stats["total"])
	assert.EqualValues(t, 25, stats["approved_percentage"])

	code, resp = api.do(http.MethodGet, "/api/statistics", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, decode[map[string]interface{}](t, resp.Data), "post")

	code, resp = api.do(http.MethodGet, "/api/statistics?type=post&start=2026-03-01&end=2026-03-31", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 4, decode[map[string]interface{}](t, resp.Data)["total"])

	code, resp = api.do(http.MethodGet, "/api/statistics?type=post&start=yesterday&end=2026-03-31", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp.Error, "start date")

	code, resp = api.do(http.MethodGet, "/api/statistics/post/detailed?limit=1", nil)
	require.Equal(t, http.StatusOK, code)
	detailed := decode[map[string]interface{}](t, resp.Data)
	assert.Len(t, detailed["latest_approvals"], 1)

	code, resp = api.do(http.MethodGet, "/api/statistics/video/detailed", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, resp.Data)

	code, resp = api.do(http.MethodGet, "/api/types", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"post"}, decode[[]string](t, resp.Data))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unauthorized", approval.NewUnauthorized(approval.ActionApprove, nil), http.StatusForbidden},
		{"not found", fmt.Errorf("subject post#1: %w", approval.ErrSubjectNotFound), http.StatusNotFound},
		{"exists", fmt.Errorf("wrapped: %w", approval.ErrSubjectExists), http.StatusConflict},
		{"invalid status", &approval.InvalidStatusError{Value: "maybe"}, http.StatusBadRequest},
		{"config", &approval.InvalidStatusError{Err: &approval.ConfigError{Key: "mode", Reason: "bad"}}, http.StatusInternalServerError},
		{"input", &approval.InputError{Field: "start date", Reason: "bad"}, http.StatusBadRequest},
		{"missing field", &approval.MissingFieldError{Field: "subject_id"}, http.StatusBadRequest},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
