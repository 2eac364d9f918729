package exclusion

import (
	"context"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// Repository defines the data access contract for stored IP exclusions.
type Repository interface {
	// ListIPExclusions returns every stored exclusion entry.
	ListIPExclusions(ctx context.Context) ([]domain.IPExclusion, error)
}
