package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// EventRepo implements engagement.EventRepository against PostgreSQL.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed event repository.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) InsertOpen(ctx context.Context, e *domain.OpenEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaign_track_open (id, campaign_id, subscriber_id, ip_address, user_agent, device_type, date_added)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.CampaignID, e.SubscriberID, e.IPAddress, e.UserAgent, e.DeviceType, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert open: %w", err)
	}
	return nil
}

func (r *EventRepo) InsertClick(ctx context.Context, e *domain.ClickEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaign_track_url (id, url_id, subscriber_id, ip_address, user_agent, device_type, date_added)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.URLID, e.SubscriberID, e.IPAddress, e.UserAgent, e.DeviceType, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert click: %w", err)
	}
	return nil
}

func (r *EventRepo) HasOpened(ctx context.Context, campaignID, subscriberID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM campaign_track_open WHERE campaign_id = $1 AND subscriber_id = $2)`,
		campaignID, subscriberID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has opened: %w", err)
	}
	return exists, nil
}
