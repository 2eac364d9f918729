package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MarkerRepo stores guard dedup markers in tracking_markers so every
// instance sharing the database sees them. Used when Redis is absent.
type MarkerRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewMarkerRepo creates a MarkerRepo.
func NewMarkerRepo(db *sql.DB) *MarkerRepo { return &MarkerRepo{db: db, now: time.Now} }

// Has reports whether marker exists and has not expired.
func (r *MarkerRepo) Has(ctx context.Context, marker string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tracking_markers WHERE marker = $1 AND expires_at > $2)`,
		marker, r.now().UTC(),
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("marker lookup: %w", err)
	}
	return ok, nil
}

// Set stores marker for ttl. Markers carry their hour bucket, so an
// existing row is left alone.
func (r *MarkerRepo) Set(ctx context.Context, marker string, ttl time.Duration) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tracking_markers (marker, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (marker) DO NOTHING
	`, marker, r.now().UTC().Add(ttl))
	if err != nil {
		return fmt.Errorf("marker write: %w", err)
	}
	return nil
}

// Sweep deletes expired markers and returns how many went.
func (r *MarkerRepo) Sweep(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tracking_markers WHERE expires_at <= $1`, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("marker sweep: %w", err)
	}
	return res.RowsAffected()
}
