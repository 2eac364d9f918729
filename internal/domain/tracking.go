package domain

import "time"

// TrackingEventType enumerates the engagement events the tracker records.
type TrackingEventType string

const (
	EventOpen  TrackingEventType = "open"
	EventClick TrackingEventType = "click"
)

// MaxUserAgentLength is the longest user agent persisted on an event row.
const MaxUserAgentLength = 255

// OpenEvent is a registered rendering of the tracking pixel. Rows are
// append-only.
type OpenEvent struct {
	ID           string    `json:"id" db:"id"`
	CampaignID   string    `json:"campaign_id" db:"campaign_id"`
	SubscriberID string    `json:"subscriber_id" db:"subscriber_id"`
	IPAddress    string    `json:"ip_address" db:"ip_address"`
	UserAgent    string    `json:"user_agent" db:"user_agent"`
	DeviceType   string    `json:"device_type" db:"device_type"`
	CreatedAt    time.Time `json:"date_added" db:"date_added"`
}

// ClickEvent is a registered follow of a tracked link. Rows are append-only.
type ClickEvent struct {
	ID           string    `json:"id" db:"id"`
	URLID        string    `json:"url_id" db:"url_id"`
	SubscriberID string    `json:"subscriber_id" db:"subscriber_id"`
	IPAddress    string    `json:"ip_address" db:"ip_address"`
	UserAgent    string    `json:"user_agent" db:"user_agent"`
	DeviceType   string    `json:"device_type" db:"device_type"`
	CreatedAt    time.Time `json:"date_added" db:"date_added"`
}

// TruncateUserAgent shortens ua to MaxUserAgentLength bytes without
// splitting a UTF-8 sequence.
func TruncateUserAgent(ua string) string {
	if len(ua) <= MaxUserAgentLength {
		return ua
	}
	cut := MaxUserAgentLength
	for cut > 0 && ua[cut]&0xC0 == 0x80 {
		cut--
	}
	return ua[:cut]
}
