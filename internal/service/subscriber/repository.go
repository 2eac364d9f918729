package subscriber

import (
	"context"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// Repository defines the data access contract for subscribers and lists.
// Implementations must be safe for concurrent use.
type Repository interface {
	// FindByUID returns the subscriber with its field values loaded.
	// Returns ErrNotFound if it doesn't exist.
	FindByUID(ctx context.Context, uid string) (*domain.Subscriber, error)

	// FindList returns a list with its company block. Returns
	// ErrListNotFound if it doesn't exist.
	FindList(ctx context.Context, listID string) (*domain.List, error)

	// UpdateIPAddress stores the last address the subscriber was seen at.
	UpdateIPAddress(ctx context.Context, subscriberID, ip string) error

	// CopyToList inserts a confirmed copy of sub, field values included, into
	// the target list. When move is set the source row is marked moved in the
	// same transaction. Returns false without changes when the target list
	// already holds the email address.
	CopyToList(ctx context.Context, sub *domain.Subscriber, targetListID string, move bool) (bool, error)

	// UpsertFieldValue sets one list field value of the subscriber.
	UpsertFieldValue(ctx context.Context, subscriberID, fieldID, value string) error
}
