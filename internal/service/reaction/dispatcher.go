package reaction

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/metrics"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
)

// Reaction is one side effect of a recorded event.
type Reaction interface {
	Name() string
	Apply(ctx context.Context, ev *Event) error
}

// Dispatcher runs the reaction chain registered for an event type.
// Register everything before the first Dispatch; chains are not guarded
// for concurrent modification.
type Dispatcher struct {
	chains  map[domain.TrackingEventType][]Reaction
	metrics *metrics.Recorder
}

// NewDispatcher creates an empty dispatcher. m may be nil.
func NewDispatcher(m *metrics.Recorder) *Dispatcher {
	return &Dispatcher{
		chains:  make(map[domain.TrackingEventType][]Reaction),
		metrics: m,
	}
}

// Register appends r to the chain for event.
func (d *Dispatcher) Register(event domain.TrackingEventType, r Reaction) *Dispatcher {
	d.chains[event] = append(d.chains[event], r)
	return d
}

// Chain returns the reaction names registered for event, in order.
func (d *Dispatcher) Chain(event domain.TrackingEventType) []string {
	names := make([]string, 0, len(d.chains[event]))
	for _, r := range d.chains[event] {
		names = append(names, r.Name())
	}
	return names
}

// Dispatch runs every reaction registered for ev.Type, in order. Failures
// and panics are logged, counted and collected into the returned error;
// they never stop the chain.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) error {
	var result *multierror.Error
	event := string(ev.Type)

	for _, r := range d.chains[ev.Type] {
		start := time.Now()
		err := d.apply(ctx, r, ev)
		d.metrics.Reaction(event, r.Name(), time.Since(start), err != nil)
		if err != nil {
			logger.Warn("reaction failed",
				"reaction", r.Name(),
				"event", event,
				"event_id", ev.EventID,
				"campaign_uid", ev.Campaign.UID,
				"subscriber_uid", ev.Subscriber.UID,
				"error", err.Error(),
			)
			result = multierror.Append(result, fmt.Errorf("%s: %w", r.Name(), err))
		}
	}
	return result.ErrorOrNil()
}

func (d *Dispatcher) apply(ctx context.Context, r Reaction, ev *Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.Apply(ctx, ev)
}
