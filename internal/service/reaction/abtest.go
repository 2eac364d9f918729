package reaction

import (
	"context"
	"fmt"
)

// ABTestCounter credits an open to the subscriber's subject-line variant
// while the campaign's A/B test is running. Each subscriber counts once.
type ABTestCounter struct {
	repo ABTestRepository
}

// NewABTestCounter creates the A/B open counter reaction.
func NewABTestCounter(repo ABTestRepository) *ABTestCounter {
	return &ABTestCounter{repo: repo}
}

func (*ABTestCounter) Name() string { return "abtest_counter" }

func (a *ABTestCounter) Apply(ctx context.Context, ev *Event) error {
	test, err := a.repo.ActiveTest(ctx, ev.Campaign.ID)
	if err != nil {
		return fmt.Errorf("load ab test: %w", err)
	}
	if test == nil || !test.IsRunning() {
		return nil
	}
	if _, err := a.repo.CountOpen(ctx, test.ID, ev.Subscriber.ID); err != nil {
		return fmt.Errorf("count ab open: %w", err)
	}
	return nil
}
