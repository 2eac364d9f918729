package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// ExclusionRepo implements exclusion.Repository against PostgreSQL.
type ExclusionRepo struct{ db *sql.DB }

// NewExclusionRepo creates a Postgres-backed IP exclusion repository.
func NewExclusionRepo(db *sql.DB) *ExclusionRepo { return &ExclusionRepo{db: db} }

var trackableActions = []string{
	string(domain.ExcludeOpens),
	string(domain.ExcludeClicks),
	string(domain.ExcludeAll),
}

func (r *ExclusionRepo) ListIPExclusions(ctx context.Context) ([]domain.IPExclusion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, pattern, action, COALESCE(note,''), created_at
		FROM tracking_ip_exclusions
		WHERE action = ANY($1)
		ORDER BY created_at
	`, pq.Array(trackableActions))
	if err != nil {
		return nil, fmt.Errorf("query ip exclusions: %w", err)
	}
	defer rows.Close()

	var out []domain.IPExclusion
	for rows.Next() {
		e := domain.IPExclusion{Source: domain.ExclusionFromDatabase}
		if err := rows.Scan(&e.ID, &e.Pattern, &e.Action, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ip exclusion: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
