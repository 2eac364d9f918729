package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

func (r *CampaignRepo) FindByUID(ctx context.Context, uid string) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := r.db.QueryRowContext(ctx, `
		SELECT campaign_id, campaign_uid, list_id, COALESCE(customer_id,''), name,
		       COALESCE(subject,''), COALESCE(from_name,''), status,
		       open_tracking, url_tracking
		FROM campaigns
		WHERE campaign_uid = $1
	`, uid).Scan(
		&c.ID, &c.UID, &c.ListID, &c.CustomerID, &c.Name,
		&c.Subject, &c.FromName, &c.Status,
		&c.Options.OpenTracking, &c.Options.URLTracking,
	)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) FindURLByHash(ctx context.Context, campaignID, hash string) (*domain.TrackedURL, error) {
	u := &domain.TrackedURL{}
	err := r.db.QueryRowContext(ctx, `
		SELECT url_id, campaign_id, hash, destination
		FROM campaign_urls
		WHERE campaign_id = $1 AND hash = $2
	`, campaignID, hash).Scan(&u.ID, &u.CampaignID, &u.Hash, &u.Destination)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrURLNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find campaign url: %w", err)
	}
	return u, nil
}
