package reaction

import (
	"context"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// FieldRuleRepository loads field-update rules. For clicks only rules bound
// to urlID are returned; for opens urlID is empty.
type FieldRuleRepository interface {
	FieldRules(ctx context.Context, campaignID string, event domain.TrackingEventType, urlID string) ([]domain.FieldActionRule, error)
}

// SubscriberRuleRepository loads move/copy rules, scoped like field rules.
type SubscriberRuleRepository interface {
	SubscriberRules(ctx context.Context, campaignID string, event domain.TrackingEventType, urlID string) ([]domain.SubscriberActionRule, error)
}

// WebhookRepository loads the webhook subscriptions of a campaign.
type WebhookRepository interface {
	Webhooks(ctx context.Context, campaignID string, event domain.TrackingEventType) ([]domain.WebhookSubscription, error)
}

// Queue accepts webhook delivery jobs. Delivery happens elsewhere.
type Queue interface {
	Enqueue(ctx context.Context, job domain.WebhookJob) error
}

// ABTestRepository backs the subject-line A/B open counter.
type ABTestRepository interface {
	// ActiveTest returns the campaign's A/B test, or nil when it has none.
	ActiveTest(ctx context.Context, campaignID string) (*domain.ABTest, error)

	// CountOpen stamps the subscriber's variant assignment as opened and,
	// only if that stamp was the first, increments the variant's open
	// counter. It reports whether the counter moved.
	CountOpen(ctx context.Context, testID, subscriberID string) (bool, error)
}

// FieldWriter stores list field values.
type FieldWriter interface {
	SetField(ctx context.Context, sub *domain.Subscriber, field domain.ListField, value string) error
}

// ListMover moves or copies subscribers between lists.
type ListMover interface {
	Move(ctx context.Context, sub *domain.Subscriber, targetListID string) (bool, error)
	Copy(ctx context.Context, sub *domain.Subscriber, targetListID string) (bool, error)
}
