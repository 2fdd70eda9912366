package dispatcher

import (
	"context"

	"github.com/garyjia/approvals/internal/domain/event"
)

// Handler processes lifecycle events
type Handler func(ctx context.Context, evt event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name        string
	Kind        event.Kind
	Handler     Handler
	Description string
}
