package campaign

import (
	"context"
	"strings"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// MaxHashLength is the longest tracked-link hash ever looked up.
const MaxHashLength = 40

var hashStripper = strings.NewReplacer(".", "", " ", "", "-", "", "_", "", "=", "")

// Service implements campaign lookups for the tracker. All public methods
// are safe for concurrent use if the underlying repository is.
type Service struct {
	repo Repository
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Trackable returns the campaign with the given UID unless it is missing or
// pending deletion, in which case ErrNotFound is returned.
func (s *Service) Trackable(ctx context.Context, uid string) (*domain.Campaign, error) {
	if uid == "" {
		return nil, ErrNotFound
	}
	c, err := s.repo.FindByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if c.IsPendingDelete() {
		return nil, ErrNotFound
	}
	return c, nil
}

// TrackedURL returns the campaign's link for hash after normalising it.
func (s *Service) TrackedURL(ctx context.Context, c *domain.Campaign, hash string) (*domain.TrackedURL, error) {
	h := NormalizeHash(hash)
	if h == "" {
		return nil, ErrURLNotFound
	}
	return s.repo.FindURLByHash(ctx, c.ID, h)
}

// NormalizeHash strips the characters that mail clients and link scanners
// tend to inject into the hash path segment and caps its length. It is
// idempotent.
func NormalizeHash(hash string) string {
	h := hashStripper.Replace(hash)
	if len(h) > MaxHashLength {
		h = h[:MaxHashLength]
	}
	return h
}
