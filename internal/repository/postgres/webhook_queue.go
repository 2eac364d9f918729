package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// WebhookQueue implements reaction.Queue on the webhook_queue table. An
// external worker polls pending rows and performs the deliveries.
type WebhookQueue struct{ db *sql.DB }

// NewWebhookQueue creates a table-backed webhook queue.
func NewWebhookQueue(db *sql.DB) *WebhookQueue { return &WebhookQueue{db: db} }

func (q *WebhookQueue) Enqueue(ctx context.Context, job domain.WebhookJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO webhook_queue (id, webhook_id, webhook_url, event, event_id, status, attempts, date_added)
		VALUES ($1, $2, $3, $4, $5, 'pending', 0, NOW())
	`, job.ID, job.WebhookID, job.WebhookURL, job.Event, job.EventID)
	if err != nil {
		return fmt.Errorf("enqueue webhook: %w", err)
	}
	return nil
}
