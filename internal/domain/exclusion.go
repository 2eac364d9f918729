package domain

import "time"

// ExclusionAction names the tracking action an IP exclusion applies to.
type ExclusionAction string

const (
	ExcludeOpens  ExclusionAction = "open"
	ExcludeClicks ExclusionAction = "click"
	ExcludeAll    ExclusionAction = "all"
)

// ExclusionSource indicates where an exclusion entry came from.
type ExclusionSource string

const (
	ExclusionFromConfig   ExclusionSource = "config"
	ExclusionFromDatabase ExclusionSource = "database"
)

// IPExclusion is one entry of the tracking IP-exclusion list. Pattern is a
// single address ("203.0.113.7") or a CIDR block ("198.51.100.0/24").
type IPExclusion struct {
	ID        string          `json:"id" db:"id"`
	Pattern   string          `json:"pattern" db:"pattern"`
	Action    ExclusionAction `json:"action" db:"action"`
	Source    ExclusionSource `json:"source" db:"source"`
	Note      string          `json:"note,omitempty" db:"note"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Covers reports whether the entry applies to the given event type.
func (e IPExclusion) Covers(event TrackingEventType) bool {
	switch e.Action {
	case ExcludeAll, "":
		return true
	case ExcludeOpens:
		return event == EventOpen
	case ExcludeClicks:
		return event == EventClick
	}
	return false
}
