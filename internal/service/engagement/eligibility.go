package engagement

import (
	"context"
	"strings"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// Attempt is one tracking hit being considered for recording.
type Attempt struct {
	Event      domain.TrackingEventType
	Campaign   *domain.Campaign
	Subscriber *domain.Subscriber
	IPAddress  string
	UserAgent  string
}

// Filter vetoes tracking attempts.
type Filter interface {
	Allow(ctx context.Context, a Attempt) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(ctx context.Context, a Attempt) bool

func (f FilterFunc) Allow(ctx context.Context, a Attempt) bool { return f(ctx, a) }

// IPPolicy answers whether an address may be tracked for an event type.
type IPPolicy interface {
	CanTrack(ctx context.Context, ip string, event domain.TrackingEventType) bool
}

// IPFilter rejects attempts from excluded addresses.
func IPFilter(p IPPolicy) Filter {
	return FilterFunc(func(ctx context.Context, a Attempt) bool {
		return p.CanTrack(ctx, a.IPAddress, a.Event)
	})
}

var botPatterns = []string{
	"bot", "crawler", "spider", "slurp", "googlebot", "bingbot",
	"yahoo", "baidu", "yandex", "preview", "proxy", "scanner",
}

// IsBot reports whether userAgent looks like an automated client.
func IsBot(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, p := range botPatterns {
		if strings.Contains(ua, p) {
			return true
		}
	}
	return false
}

// BotFilter rejects attempts whose user agent matches a known bot pattern.
func BotFilter() Filter {
	return FilterFunc(func(_ context.Context, a Attempt) bool {
		return !IsBot(a.UserAgent)
	})
}

// DeviceType classifies a user agent as mobile, tablet or desktop.
func DeviceType(userAgent string) string {
	ua := strings.ToLower(userAgent)
	if strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet") {
		return "tablet"
	}
	if strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone") {
		return "mobile"
	}
	return "desktop"
}

// Eligibility is the ordered filter chain every attempt must pass, followed
// by the subscriber status rule: only confirmed or moved subscribers are
// ever tracked.
type Eligibility struct {
	filters []Filter
}

// NewEligibility creates the chain. Filters run in the given order.
func NewEligibility(filters ...Filter) *Eligibility {
	return &Eligibility{filters: filters}
}

// Check reports whether a may be recorded. Every filter is evaluated.
func (e *Eligibility) Check(ctx context.Context, a Attempt) bool {
	ok := true
	if e != nil {
		for _, f := range e.filters {
			ok = f.Allow(ctx, a) && ok
		}
	}
	return ok && a.Subscriber != nil && (a.Subscriber.IsConfirmed() || a.Subscriber.IsMoved())
}
