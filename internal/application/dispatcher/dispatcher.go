package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/approvals/internal/domain/event"
)

// Dispatcher routes lifecycle events to registered handlers
type Dispatcher interface {
	// Subscribe registers a handler for an event kind
	Subscribe(kind event.Kind, handler Handler)

	// SubscribeNamed registers a handler with a name for debugging
	SubscribeNamed(kind event.Kind, name string, handler Handler)

	// SubscribeAll registers one named handler for every lifecycle kind
	SubscribeAll(name string, handler Handler)

	// Unsubscribe removes a handler by name
	Unsubscribe(kind event.Kind, name string)

	// Dispatch runs every handler registered for the event's kind, in
	// registration order. A failing or panicking handler never stops the
	// ones after it; all failures are joined into the returned error.
	Dispatch(ctx context.Context, evt event.Event) error

	// ListHandlers returns registered handlers for an event kind
	ListHandlers(kind event.Kind) []HandlerInfo

	// Close stops accepting events
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ErrClosed is returned when dispatching after Close
var ErrClosed = errors.New("dispatcher is closed")

type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Kind][]HandlerInfo
	logger   Logger
	closed   atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers: make(map[event.Kind][]HandlerInfo),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *eventDispatcher) Subscribe(kind event.Kind, handler Handler) {
	d.mu.RLock()
	name := fmt.Sprintf("handler-%d", len(d.handlers[kind]))
	d.mu.RUnlock()
	d.SubscribeNamed(kind, name, handler)
}

func (d *eventDispatcher) SubscribeNamed(kind event.Kind, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[kind] = append(d.handlers[kind], HandlerInfo{
		Name:    name,
		Kind:    kind,
		Handler: handler,
	})

	if d.logger != nil {
		d.logger.Info("Handler registered",
			"event", kind,
			"handler_name", name,
		)
	}
}

func (d *eventDispatcher) SubscribeAll(name string, handler Handler) {
	for _, kind := range event.Kinds() {
		d.SubscribeNamed(kind, name, handler)
	}
}

func (d *eventDispatcher) Unsubscribe(kind event.Kind, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	handlers := d.handlers[kind]
	filtered := make([]HandlerInfo, 0, len(handlers))

	for _, h := range handlers {
		if h.Name != name {
			filtered = append(filtered, h)
		}
	}

	d.handlers[kind] = filtered

	if d.logger != nil {
		d.logger.Info("Handler unregistered",
			"event", kind,
			"handler_name", name,
		)
	}
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt event.Event) error {
	if d.closed.Load() {
		return ErrClosed
	}

	d.mu.RLock()
	handlers := append([]HandlerInfo(nil), d.handlers[evt.Kind()]...)
	d.mu.RUnlock()

	var errs []error
	for _, info := range handlers {
		if err := d.safeExecute(ctx, evt, info); err != nil {
			if d.logger != nil {
				d.logger.Warn("Event handler failed",
					"event", evt.Kind(),
					"event_id", evt.Envelope().ID,
					"handler_name", info.Name,
					"error", err,
				)
			}
			errs = append(errs, fmt.Errorf("handler %s failed: %w", info.Name, err))
		}
	}

	return errors.Join(errs...)
}

func (d *eventDispatcher) ListHandlers(kind event.Kind) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	handlers := d.handlers[kind]
	result := make([]HandlerInfo, len(handlers))

	for i, h := range handlers {
		result[i] = HandlerInfo{
			Name:        h.Name,
			Kind:        h.Kind,
			Description: h.Description,
		}
	}

	return result
}

func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}

	if d.logger != nil {
		d.logger.Info("Dispatcher closed")
	}

	return nil
}

// safeExecute runs a handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt event.Event, info HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			if d.logger != nil {
				d.logger.Error("Handler panic recovered",
					"event", evt.Kind(),
					"event_id", evt.Envelope().ID,
					"handler_name", info.Name,
					"panic", r,
				)
			}
		}
	}()

	return info.Handler(ctx, evt)
}
