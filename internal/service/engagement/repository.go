package engagement

import (
	"context"

	"github.com/ignite/engagement-tracker/internal/content"
	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/service/reaction"
)

// EventRepository persists engagement events. Rows are append-only.
type EventRepository interface {
	InsertOpen(ctx context.Context, e *domain.OpenEvent) error
	InsertClick(ctx context.Context, e *domain.ClickEvent) error

	// HasOpened reports whether any open is stored for the pair.
	HasOpened(ctx context.Context, campaignID, subscriberID string) (bool, error)
}

// Campaigns looks up trackable campaigns and their links.
type Campaigns interface {
	Trackable(ctx context.Context, uid string) (*domain.Campaign, error)
	TrackedURL(ctx context.Context, c *domain.Campaign, hash string) (*domain.TrackedURL, error)
}

// Subscribers looks up subscribers and lists.
type Subscribers interface {
	Find(ctx context.Context, uid string) (*domain.Subscriber, error)
	List(ctx context.Context, listID string) (*domain.List, error)
	RefreshIP(ctx context.Context, sub *domain.Subscriber, ip string) (bool, error)
}

// Resolver turns a stored destination into a redirect target.
type Resolver interface {
	Resolve(raw string, c content.Context) string
}

// Dispatcher runs the side effects of a recorded event.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *reaction.Event) error
}
