package delivery

import (
	"context"
	"fmt"
	"strings"

	"github.com/tournevent/fezdelivery/pkg/commerce"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// EventKind is the kind of order lifecycle event.
type EventKind string

const (
	EventCreated       EventKind = "created"
	EventStatusChanged EventKind = "status_changed"
)

// OrderLifecycleEvent is a storefront order event that may start a submission.
type OrderLifecycleEvent struct {
	Kind    EventKind
	OrderID int64
	From    commerce.Status // status_changed only
	To      commerce.Status // status_changed only
}

// Trigger selects which lifecycle event submits the order.
type Trigger string

const (
	TriggerCreated   Trigger = "created"
	TriggerPending   Trigger = "pending"
	TriggerCompleted Trigger = "completed"
)

// ParseTrigger validates a configured trigger.
func ParseTrigger(s string) (Trigger, error) {
	switch t := Trigger(strings.ToLower(strings.TrimSpace(s))); t {
	case TriggerCreated, TriggerPending, TriggerCompleted:
		return t, nil
	case "":
		return TriggerCreated, nil
	default:
		return "", fmt.Errorf("unknown submission trigger %q", s)
	}
}

// Matches reports whether ev should submit the order under this trigger.
func (t Trigger) Matches(ev OrderLifecycleEvent) bool {
	switch t {
	case TriggerCreated:
		return ev.Kind == EventCreated
	case TriggerPending:
		return ev.Kind == EventStatusChanged && ev.To == commerce.StatusPending
	case TriggerCompleted:
		return ev.Kind == EventStatusChanged && ev.To == commerce.StatusCompleted
	}
	return false
}

// Dispatcher routes lifecycle events to the submitter.
type Dispatcher struct {
	trigger   Trigger
	submitter *Submitter
	logger    *otelzap.Logger
}

// NewDispatcher creates a dispatcher for trigger.
func NewDispatcher(trigger Trigger, submitter *Submitter, logger *otelzap.Logger) *Dispatcher {
	return &Dispatcher{trigger: trigger, submitter: submitter, logger: logger}
}

// Handle submits the order when ev matches the trigger. It returns a nil
// result and nil error for events that are ignored.
func (d *Dispatcher) Handle(ctx context.Context, ev OrderLifecycleEvent, cache *QuoteCache) (*SubmitResult, error) {
	if !d.trigger.Matches(ev) {
		d.logger.Debug("Ignoring order event",
			zap.String("kind", string(ev.Kind)),
			zap.Int64("order_id", ev.OrderID),
			zap.String("to", string(ev.To)),
			zap.String("trigger", string(d.trigger)),
		)
		return nil, nil
	}
	return d.submitter.Submit(ctx, ev.OrderID, cache)
}
