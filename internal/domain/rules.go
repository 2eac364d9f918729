package domain

import "time"

// SubscriberActionType is what a subscriber action rule does to the
// subscriber after an engagement event.
type SubscriberActionType string

const (
	ActionMove SubscriberActionType = "move"
	ActionCopy SubscriberActionType = "copy"
)

// FieldActionRule updates a list field of the engaging subscriber. For click
// rules URLID scopes the rule to one tracked link; open rules leave it empty.
// Value may embed tags such as [DATETIME] or [IP_ADDRESS].
type FieldActionRule struct {
	ID         string            `json:"action_id" db:"action_id"`
	CampaignID string            `json:"campaign_id" db:"campaign_id"`
	Event      TrackingEventType `json:"event" db:"event"`
	URLID      string            `json:"url_id,omitempty" db:"url_id"`
	FieldID    string            `json:"field_id" db:"field_id"`
	FieldTag   string            `json:"field_tag" db:"field_tag"`
	Value      string            `json:"field_value" db:"field_value"`
}

// SubscriberActionRule moves or copies the engaging subscriber to another list.
type SubscriberActionRule struct {
	ID           string               `json:"action_id" db:"action_id"`
	CampaignID   string               `json:"campaign_id" db:"campaign_id"`
	Event        TrackingEventType    `json:"event" db:"event"`
	URLID        string               `json:"url_id,omitempty" db:"url_id"`
	Action       SubscriberActionType `json:"action" db:"action"`
	TargetListID string               `json:"list_id" db:"list_id"`
}

// WebhookSubscription asks for a webhook delivery whenever a matching event
// is recorded. URLHash scopes click subscriptions to one tracked link.
type WebhookSubscription struct {
	ID         string            `json:"webhook_id" db:"webhook_id"`
	CampaignID string            `json:"campaign_id" db:"campaign_id"`
	Event      TrackingEventType `json:"event" db:"event"`
	URLHash    string            `json:"url_hash,omitempty" db:"url_hash"`
	WebhookURL string            `json:"webhook_url" db:"webhook_url"`
}

// WebhookJob is a queued webhook delivery. Delivery itself happens in an
// external worker that reads the queue.
type WebhookJob struct {
	ID         string            `json:"id" db:"id"`
	WebhookID  string            `json:"webhook_id" db:"webhook_id"`
	WebhookURL string            `json:"webhook_url" db:"webhook_url"`
	Event      TrackingEventType `json:"event" db:"event"`
	EventID    string            `json:"event_id" db:"event_id"`
	CreatedAt  time.Time         `json:"date_added" db:"date_added"`
}

// ABTestStatus enumerates the states of a subject-line A/B test.
type ABTestStatus string

const (
	ABTestActive    ABTestStatus = "active"
	ABTestComplete  ABTestStatus = "complete"
	ABTestCancelled ABTestStatus = "cancelled"
)

// ABTest is a subject-line A/B test attached to a campaign.
type ABTest struct {
	ID         string       `json:"test_id" db:"test_id"`
	CampaignID string       `json:"campaign_id" db:"campaign_id"`
	Status     ABTestStatus `json:"status" db:"status"`
}

// IsRunning reports whether the test still collects results.
func (t *ABTest) IsRunning() bool { return t.Status == ABTestActive }
