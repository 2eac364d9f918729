package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// ABTestRepo implements reaction.ABTestRepository against PostgreSQL.
type ABTestRepo struct{ db *sql.DB }

// NewABTestRepo creates a Postgres-backed A/B test repository.
func NewABTestRepo(db *sql.DB) *ABTestRepo { return &ABTestRepo{db: db} }

func (r *ABTestRepo) ActiveTest(ctx context.Context, campaignID string) (*domain.ABTest, error) {
	t := &domain.ABTest{}
	err := r.db.QueryRowContext(ctx, `
		SELECT test_id, campaign_id, status
		FROM campaign_abtests
		WHERE campaign_id = $1 AND status = $2
		ORDER BY date_added DESC
		LIMIT 1
	`, campaignID, domain.ABTestActive).Scan(&t.ID, &t.CampaignID, &t.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find ab test: %w", err)
	}
	return t, nil
}

func (r *ABTestRepo) CountOpen(ctx context.Context, testID, subscriberID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin ab open: %w", err)
	}
	defer tx.Rollback()

	var subjectID string
	err = tx.QueryRowContext(ctx, `
		UPDATE campaign_abtest_assignments
		SET opened_at = NOW()
		WHERE test_id = $1 AND subscriber_id = $2 AND opened_at IS NULL
		RETURNING subject_id
	`, testID, subscriberID).Scan(&subjectID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stamp ab assignment: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE campaign_abtest_subjects SET opens_count = opens_count + 1 WHERE subject_id = $1`,
		subjectID,
	); err != nil {
		return false, fmt.Errorf("increment ab opens: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit ab open: %w", err)
	}
	return true, nil
}
