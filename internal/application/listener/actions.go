package listener

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/garyjia/approvals/internal/domain/event"
)

// Action is a custom callback bound to event names in configuration
type Action func(ctx context.Context, evt event.Event) error

// ActionRegistry maps configured action names to callbacks
type ActionRegistry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewActionRegistry creates an empty registry
func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{actions: make(map[string]Action)}
}

// Register binds name to action, replacing any earlier binding
func (r *ActionRegistry) Register(name string, action Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = action
}

// Lookup returns the action bound to name
func (r *ActionRegistry) Lookup(name string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	return a, ok
}

// Names lists registered action names
func (r *ActionRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CustomActionListener runs the actions configured for each event name
type CustomActionListener struct {
	settings Settings
	registry *ActionRegistry
	logger   Logger
	recorder Recorder
}

// NewCustomActionListener creates a CustomActionListener
func NewCustomActionListener(s Settings, registry *ActionRegistry, logger Logger, recorder Recorder) *CustomActionListener {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &CustomActionListener{settings: s, registry: registry, logger: logger, recorder: recorder}
}

func (l *CustomActionListener) Name() string { return "custom-actions" }

// Handle invokes each configured action in order. A failing action is logged
// and the next one still runs.
func (l *CustomActionListener) Handle(ctx context.Context, evt event.Event) error {
	eventName := evt.Kind().String()
	for _, name := range l.settings.CustomActions(evt.Envelope().Subject.Type, eventName) {
		action, ok := l.registry.Lookup(name)
		if !ok {
			l.logger.Warn("Custom action not registered", "action", name, "event", eventName)
			continue
		}
		if err := runAction(ctx, action, evt); err != nil {
			l.recorder.CustomActionFailed(name)
			l.logger.Warn("Custom action failed",
				"action", name,
				"event", eventName,
				"exception_message", err.Error(),
				"exception_class", fmt.Sprintf("%T", err),
			)
		}
	}
	return nil
}

func runAction(ctx context.Context, action Action, evt event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("custom action panic: %v", r)
		}
	}()
	return action(ctx, evt)
}
