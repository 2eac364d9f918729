package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// RuleRepo loads the per-campaign engagement rules the reactions apply.
// It implements reaction.FieldRuleRepository, SubscriberRuleRepository and
// WebhookRepository.
type RuleRepo struct{ db *sql.DB }

// NewRuleRepo creates a Postgres-backed rule repository.
func NewRuleRepo(db *sql.DB) *RuleRepo { return &RuleRepo{db: db} }

func (r *RuleRepo) FieldRules(ctx context.Context, campaignID string, event domain.TrackingEventType, urlID string) ([]domain.FieldActionRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.action_id, a.campaign_id, a.event, COALESCE(a.url_id::text,''),
		       a.field_id, f.tag, a.field_value
		FROM campaign_field_actions a
		JOIN list_fields f ON f.field_id = a.field_id
		WHERE a.campaign_id = $1 AND a.event = $2 AND COALESCE(a.url_id::text,'') = $3
		ORDER BY a.date_added, a.action_id
	`, campaignID, event, urlID)
	if err != nil {
		return nil, fmt.Errorf("query field rules: %w", err)
	}
	defer rows.Close()

	var out []domain.FieldActionRule
	for rows.Next() {
		var a domain.FieldActionRule
		if err := rows.Scan(&a.ID, &a.CampaignID, &a.Event, &a.URLID, &a.FieldID, &a.FieldTag, &a.Value); err != nil {
			return nil, fmt.Errorf("scan field rule: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *RuleRepo) SubscriberRules(ctx context.Context, campaignID string, event domain.TrackingEventType, urlID string) ([]domain.SubscriberActionRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT action_id, campaign_id, event, COALESCE(url_id::text,''), action, list_id
		FROM campaign_subscriber_actions
		WHERE campaign_id = $1 AND event = $2 AND COALESCE(url_id::text,'') = $3
		ORDER BY date_added, action_id
	`, campaignID, event, urlID)
	if err != nil {
		return nil, fmt.Errorf("query subscriber rules: %w", err)
	}
	defer rows.Close()

	var out []domain.SubscriberActionRule
	for rows.Next() {
		var a domain.SubscriberActionRule
		if err := rows.Scan(&a.ID, &a.CampaignID, &a.Event, &a.URLID, &a.Action, &a.TargetListID); err != nil {
			return nil, fmt.Errorf("scan subscriber rule: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *RuleRepo) Webhooks(ctx context.Context, campaignID string, event domain.TrackingEventType) ([]domain.WebhookSubscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT webhook_id, campaign_id, event, COALESCE(url_hash,''), webhook_url
		FROM campaign_webhooks
		WHERE campaign_id = $1 AND event = $2
		ORDER BY date_added, webhook_id
	`, campaignID, event)
	if err != nil {
		return nil, fmt.Errorf("query webhooks: %w", err)
	}
	defer rows.Close()

	var out []domain.WebhookSubscription
	for rows.Next() {
		var w domain.WebhookSubscription
		if err := rows.Scan(&w.ID, &w.CampaignID, &w.Event, &w.URLHash, &w.WebhookURL); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
