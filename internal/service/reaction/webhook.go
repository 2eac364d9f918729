package reaction

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// Webhook enqueues one delivery job per matching webhook subscription.
// Click subscriptions carrying a URL hash only match that link.
type Webhook struct {
	subs  WebhookRepository
	queue Queue
}

// NewWebhook creates the webhook-enqueue reaction.
func NewWebhook(subs WebhookRepository, queue Queue) *Webhook {
	return &Webhook{subs: subs, queue: queue}
}

func (*Webhook) Name() string { return "webhook" }

func (w *Webhook) Apply(ctx context.Context, ev *Event) error {
	subs, err := w.subs.Webhooks(ctx, ev.Campaign.ID, ev.Type)
	if err != nil {
		return fmt.Errorf("load webhooks: %w", err)
	}

	var result *multierror.Error
	for _, sub := range subs {
		if ev.Type == domain.EventClick && sub.URLHash != "" && (ev.URL == nil || ev.URL.Hash != sub.URLHash) {
			continue
		}
		job := domain.WebhookJob{
			ID:         uuid.New().String(),
			WebhookID:  sub.ID,
			WebhookURL: sub.WebhookURL,
			Event:      ev.Type,
			EventID:    ev.EventID,
			CreatedAt:  ev.At,
		}
		if err := w.queue.Enqueue(ctx, job); err != nil {
			result = multierror.Append(result, fmt.Errorf("webhook %s: %w", sub.ID, err))
		}
	}
	return result.ErrorOrNil()
}
