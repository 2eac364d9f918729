package reaction

import (
	"time"

	"github.com/ignite/engagement-tracker/internal/content"
	"github.com/ignite/engagement-tracker/internal/domain"
)

// Event is the recorded engagement handed to every reaction. URL is set for
// clicks only. List may be nil when it could not be loaded.
type Event struct {
	Type       domain.TrackingEventType
	EventID    string
	Campaign   *domain.Campaign
	Subscriber *domain.Subscriber
	List       *domain.List
	URL        *domain.TrackedURL
	IPAddress  string
	UserAgent  string
	At         time.Time
}

// ContentContext exposes the event to tag and template substitution.
func (e *Event) ContentContext() content.Context {
	extra := map[string]string{
		"IP_ADDRESS": e.IPAddress,
		"USER_AGENT": e.UserAgent,
	}
	if e.URL != nil {
		extra["URL"] = e.URL.Destination
	}
	return content.Context{
		Campaign:   e.Campaign,
		Subscriber: e.Subscriber,
		List:       e.List,
		Extra:      extra,
		Now:        e.At,
	}
}

func (e *Event) urlID() string {
	if e.URL == nil {
		return ""
	}
	return e.URL.ID
}
