package campaign

import (
	"context"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// Repository defines the data access contract for campaigns and their
// tracked links. Implementations must be safe for concurrent use.
type Repository interface {
	// FindByUID returns the campaign with the given public UID, in any
	// status. Returns ErrNotFound if it doesn't exist.
	FindByUID(ctx context.Context, uid string) (*domain.Campaign, error)

	// FindURLByHash returns the campaign's tracked link with the given hash.
	// Returns ErrURLNotFound if it doesn't exist.
	FindURLByHash(ctx context.Context, campaignID, hash string) (*domain.TrackedURL, error)
}
