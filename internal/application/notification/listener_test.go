package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/approvals/internal/application/port"
	"github.com/garyjia/approvals/internal/domain/approval"
	"github.com/garyjia/approvals/internal/domain/event"
)

type logEntry struct {
	level string
	msg   string
}

type mockLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (m *mockLogger) log(level, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, logEntry{level, msg})
}

func (m *mockLogger) Info(msg string, _ ...interface{})  { m.log("info", msg) }
func (m *mockLogger) Warn(msg string, _ ...interface{})  { m.log("warn", msg) }
func (m *mockLogger) Error(msg string, _ ...interface{}) { m.log("error", msg) }

func (m *mockLogger) count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

type mockSender struct {
	sendFunc func(ctx context.Context, msg port.Message) error
	sent     []port.Message
}

func (m *mockSender) Send(ctx context.Context, msg port.Message) error {
	m.sent = append(m.sent, msg)
	if m.sendFunc != nil {
		return m.sendFunc(ctx, msg)
	}
	return nil
}

type mockOwners struct {
	getFunc func(ctx context.Context, ref approval.SubjectRef) (*approval.Subject, error)
}

func (m *mockOwners) Get(ctx context.Context, ref approval.SubjectRef) (*approval.Subject, error) {
	return m.getFunc(ctx, ref)
}

func ownedBy(owner string) *mockOwners {
	return &mockOwners{getFunc: func(_ context.Context, ref approval.SubjectRef) (*approval.Subject, error) {
		return &approval.Subject{Type: ref.Type, ID: ref.ID, OwnerID: &owner}, nil
	}}
}

func strPtr(s string) *string { return &s }

func rejectedEvent() *event.Rejected {
	base := event.NewBase(approval.Ref("post", "12"), strPtr("mod"), strPtr("too short"))
	return &event.Rejected{
		Base:   base,
		Reason: strPtr("incomplete"),
		Record: &approval.Record{ID: 3, SubjectType: "post", SubjectID: "12", Status: approval.StatusRejected},
	}
}

func approvedEvent() *event.Approved {
	base := event.NewBase(approval.Ref("post", "12"), nil, nil)
	return &event.Approved{
		Base:   base,
		Record: &approval.Record{ID: 4, SubjectType: "post", SubjectID: "12", Status: approval.StatusApproved},
	}
}

func TestConfig_Wants(t *testing.T) {
	enabled := DefaultConfig()
	enabled.Enabled = true

	tests := []struct {
		name string
		cfg  Config
		kind event.Kind
		want bool
	}{
		{"disabled", DefaultConfig(), event.KindApproved, false},
		{"approved", enabled, event.KindApproved, true},
		{"rejected", enabled, event.KindRejected, true},
		{"pending off by default", enabled, event.KindPending, false},
		{"pre events ignored", enabled, event.KindApproving, false},
		{"setting pending ignored", Config{Enabled: true, OnPending: true}, event.KindSettingPending, false},
		{"pending on", Config{Enabled: true, OnPending: true}, event.KindPending, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Wants(tt.kind))
		})
	}
}

func TestListener_SendsToOwnerAndAdmin(t *testing.T) {
	sender := &mockSender{}
	logger := &mockLogger{}
	cfg := Config{Enabled: true, OnRejected: true, NotifyOwner: true, AdminEmail: "admin@example.com"}
	l := NewListener(cfg, ownedBy("user-9"), sender, logger)

	require.NoError(t, l.Handle(context.Background(), rejectedEvent()))

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "user-9", sender.sent[0].To)
	assert.Equal(t, "admin@example.com", sender.sent[1].To)

	msg := sender.sent[0]
	assert.Equal(t, "model_rejected", msg.Event)
	assert.Equal(t, "[post] 12 was rejected", msg.Subject)
	assert.Contains(t, msg.Body, "Reason: incomplete")
	assert.Contains(t, msg.Body, "Comment: too short")
	assert.Equal(t, "rejected", msg.Data["status"])
	assert.Equal(t, int64(3), msg.Data["approval_id"])
	assert.Equal(t, 2, logger.count("info"))
}

func TestListener_SkipsUnwantedEvents(t *testing.T) {
	sender := &mockSender{}
	cfg := Config{Enabled: true, OnApproved: false, OnRejected: true, AdminEmail: "admin@example.com"}
	l := NewListener(cfg, nil, sender, &mockLogger{})

	require.NoError(t, l.Handle(context.Background(), approvedEvent()))
	assert.Empty(t, sender.sent)
}

func TestListener_OwnerLookup(t *testing.T) {
	tests := []struct {
		name      string
		owners    *mockOwners
		wantTo    []string
		wantWarns int
	}{
		{
			name:   "owner found",
			owners: ownedBy("u1"),
			wantTo: []string{"u1"},
		},
		{
			name: "subject has no owner",
			owners: &mockOwners{getFunc: func(_ context.Context, ref approval.SubjectRef) (*approval.Subject, error) {
				return &approval.Subject{Type: ref.Type, ID: ref.ID}, nil
			}},
		},
		{
			name: "subject not registered",
			owners: &mockOwners{getFunc: func(context.Context, approval.SubjectRef) (*approval.Subject, error) {
				return nil, approval.ErrSubjectNotFound
			}},
		},
		{
			name: "lookup fails",
			owners: &mockOwners{getFunc: func(context.Context, approval.SubjectRef) (*approval.Subject, error) {
				return nil, errors.New("db gone")
			}},
			wantWarns: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &mockSender{}
			logger := &mockLogger{}
			l := NewListener(Config{Enabled: true, OnApproved: true, NotifyOwner: true}, tt.owners, sender, logger)

			require.NoError(t, l.Handle(context.Background(), approvedEvent()))

			var got []string
			for _, m := range sender.sent {
				got = append(got, m.To)
			}
			assert.Equal(t, tt.wantTo, got)
			assert.Equal(t, tt.wantWarns, logger.count("warn"))
		})
	}
}

func TestListener_SendFailureIsIsolated(t *testing.T) {
	sender := &mockSender{sendFunc: func(_ context.Context, msg port.Message) error {
		if msg.To == "user-9" {
			return errors.New("mailbox full")
		}
		return nil
	}}
	logger := &mockLogger{}
	cfg := Config{Enabled: true, OnApproved: true, NotifyOwner: true, AdminEmail: "admin@example.com"}
	l := NewListener(cfg, ownedBy("user-9"), sender, logger)

	err := l.Handle(context.Background(), approvedEvent())

	assert.NoError(t, err)
	assert.Len(t, sender.sent, 2)
	assert.Equal(t, 1, logger.count("warn"))
	assert.Equal(t, 1, logger.count("info"))
}

func TestBuildMessage_Pending(t *testing.T) {
	evt := &event.Pending{
		Base:   event.NewBase(approval.Ref("video", "v"), nil, nil),
		Record: &approval.Record{ID: 1, SubjectType: "video", SubjectID: "v", Status: approval.StatusPending},
	}

	msg := BuildMessage(evt)

	assert.Empty(t, msg.To)
	assert.Equal(t, "[video] v is pending review", msg.Subject)
	assert.Equal(t, "video v is pending review.", msg.Body)
	assert.NotContains(t, msg.Data, "reason")
}
