package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/garyjia/approvals/internal/domain/approval"
	"github.com/garyjia/approvals/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu      sync.Mutex
	infos   []string
	warns   []string
	errors  []string
	entries []map[string]interface{}
}

func (m *mockLogger) record(level, msg string, keysAndValues ...interface{}) {
	entry := map[string]interface{}{"msg": msg, "level": level}
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			entry[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
		}
	}
	m.entries = append(m.entries, entry)
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
	m.record("info", msg, keysAndValues...)
}

func (m *mockLogger) Warn(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, msg)
	m.record("warn", msg, keysAndValues...)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
	m.record("error", msg, keysAndValues...)
}

func (m *mockLogger) WarnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.warns)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func (m *mockLogger) HasInfo(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, info := range m.infos {
		if info == msg {
			return true
		}
	}
	return false
}

func approvedEvent() event.Event {
	return &event.Approved{
		Base:   event.NewBase(approval.Ref("post", "1"), nil, nil),
		Record: &approval.Record{ID: 1, Status: approval.StatusApproved},
	}
}

func TestNewDispatcher(t *testing.T) {
	t.Run("creates dispatcher without logger", func(t *testing.T) {
		if NewDispatcher() == nil {
			t.Fatal("expected non-nil dispatcher")
		}
	})

	t.Run("creates dispatcher with logger", func(t *testing.T) {
		if NewDispatcher(WithLogger(&mockLogger{})) == nil {
			t.Fatal("expected non-nil dispatcher")
		}
	})
}

func TestSubscribe(t *testing.T) {
	t.Run("subscribes multiple handlers to same kind", func(t *testing.T) {
		d := NewDispatcher()
		called1, called2 := false, false

		d.Subscribe(event.KindApproved, func(ctx context.Context, evt event.Event) error {
			called1 = true
			return nil
		})
		d.Subscribe(event.KindApproved, func(ctx context.Context, evt event.Event) error {
			called2 = true
			return nil
		})

		if err := d.Dispatch(context.Background(), approvedEvent()); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if !called1 || !called2 {
			t.Error("expected both handlers to be called")
		}

		handlers := d.ListHandlers(event.KindApproved)
		if len(handlers) != 2 || handlers[0].Name == handlers[1].Name {
			t.Errorf("expected two distinctly named handlers, got %+v", handlers)
		}
	})

	t.Run("only handlers of the event kind run", func(t *testing.T) {
		d := NewDispatcher()
		called := false
		d.Subscribe(event.KindRejected, func(ctx context.Context, evt event.Event) error {
			called = true
			return nil
		})

		if err := d.Dispatch(context.Background(), approvedEvent()); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if called {
			t.Error("rejected handler should not see approved events")
		}
	})

	t.Run("subscribe all covers every kind", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		d.SubscribeAll("audit-log", func(ctx context.Context, evt event.Event) error { return nil })

		for _, kind := range event.Kinds() {
			if got := d.ListHandlers(kind); len(got) != 1 || got[0].Name != "audit-log" {
				t.Errorf("kind %s: expected audit-log handler, got %+v", kind, got)
			}
		}
		if !logger.HasInfo("Handler registered") {
			t.Error("expected registration to be logged")
		}
	})
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	called1, called2 := false, false

	d.SubscribeNamed(event.KindApproved, "handler-1", func(ctx context.Context, evt event.Event) error {
		called1 = true
		return nil
	})
	d.SubscribeNamed(event.KindApproved, "handler-2", func(ctx context.Context, evt event.Event) error {
		called2 = true
		return nil
	})

	d.Unsubscribe(event.KindApproved, "handler-1")

	if err := d.Dispatch(context.Background(), approvedEvent()); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if called1 {
		t.Error("expected handler-1 not to be called")
	}
	if !called2 {
		t.Error("expected handler-2 to be called")
	}
}

func TestDispatch(t *testing.T) {
	t.Run("runs handlers in registration order", func(t *testing.T) {
		d := NewDispatcher()
		var order []int

		for i := 1; i <= 3; i++ {
			n := i
			d.Subscribe(event.KindApproved, func(ctx context.Context, evt event.Event) error {
				order = append(order, n)
				return nil
			})
		}

		if err := d.Dispatch(context.Background(), approvedEvent()); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
			t.Errorf("expected handlers to run in order [1 2 3], got %v", order)
		}
	})

	t.Run("keeps going after a failing handler", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		expectedErr := errors.New("webhook down")
		called := false

		d.SubscribeNamed(event.KindApproved, "webhooks", func(ctx context.Context, evt event.Event) error {
			return expectedErr
		})
		d.SubscribeNamed(event.KindApproved, "custom-actions", func(ctx context.Context, evt event.Event) error {
			called = true
			return nil
		})

		err := d.Dispatch(context.Background(), approvedEvent())
		if !errors.Is(err, expectedErr) {
			t.Errorf("expected joined error to wrap %v, got %v", expectedErr, err)
		}
		if !called {
			t.Error("expected second handler to run after first failed")
		}
		if logger.WarnCount() != 1 {
			t.Errorf("expected one warning, got %d", logger.WarnCount())
		}
	})

	t.Run("recovers from handler panic", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		called := false

		d.Subscribe(event.KindApproved, func(ctx context.Context, evt event.Event) error {
			panic("test panic")
		})
		d.Subscribe(event.KindApproved, func(ctx context.Context, evt event.Event) error {
			called = true
			return nil
		})

		err := d.Dispatch(context.Background(), approvedEvent())
		if err == nil {
			t.Fatal("expected error from panic recovery")
		}
		if !called {
			t.Error("expected handler after the panic to run")
		}
		if logger.ErrorCount() == 0 {
			t.Error("expected panic to be logged as error")
		}
	})

	t.Run("returns error when dispatcher is closed", func(t *testing.T) {
		d := NewDispatcher()
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		if err := d.Dispatch(context.Background(), approvedEvent()); !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
		if err := d.Close(); err == nil {
			t.Error("expected error on second close")
		}
	})
}
