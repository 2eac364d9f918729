package subscriber

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ignite/engagement-tracker/internal/domain"
)

const (
	listCacheTTL     = 5 * time.Minute
	listCacheCleanup = 10 * time.Minute
)

// Service implements subscriber lookups and list mutations. Lists are read
// on every hit but change rarely, so they are cached in-process.
type Service struct {
	repo  Repository
	lists *gocache.Cache
}

// NewService creates a subscriber service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{
		repo:  repo,
		lists: gocache.New(listCacheTTL, listCacheCleanup),
	}
}

// Find returns the subscriber with the given UID.
func (s *Service) Find(ctx context.Context, uid string) (*domain.Subscriber, error) {
	if uid == "" {
		return nil, ErrNotFound
	}
	return s.repo.FindByUID(ctx, uid)
}

// List returns the list with the given ID, from cache when possible.
func (s *Service) List(ctx context.Context, listID string) (*domain.List, error) {
	if cached, ok := s.lists.Get(listID); ok {
		return cached.(*domain.List), nil
	}
	l, err := s.repo.FindList(ctx, listID)
	if err != nil {
		return nil, err
	}
	s.lists.SetDefault(listID, l)
	return l, nil
}

// RefreshIP records ip as the subscriber's address when it is a valid
// address different from the stored one. It reports whether it wrote.
func (s *Service) RefreshIP(ctx context.Context, sub *domain.Subscriber, ip string) (bool, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false, nil
	}
	ip = addr.Unmap().String()
	if ip == sub.IPAddress {
		return false, nil
	}
	if err := s.repo.UpdateIPAddress(ctx, sub.ID, ip); err != nil {
		return false, fmt.Errorf("update subscriber ip: %w", err)
	}
	sub.IPAddress = ip
	return true, nil
}

// Move copies sub into the target list as confirmed and marks the source
// row moved. Moving into the subscriber's own list is a no-op.
func (s *Service) Move(ctx context.Context, sub *domain.Subscriber, targetListID string) (bool, error) {
	return s.transfer(ctx, sub, targetListID, true)
}

// Copy copies sub into the target list as confirmed and leaves the source
// row untouched.
func (s *Service) Copy(ctx context.Context, sub *domain.Subscriber, targetListID string) (bool, error) {
	return s.transfer(ctx, sub, targetListID, false)
}

func (s *Service) transfer(ctx context.Context, sub *domain.Subscriber, targetListID string, move bool) (bool, error) {
	if targetListID == "" || targetListID == sub.ListID {
		return false, nil
	}
	if _, err := s.List(ctx, targetListID); err != nil {
		return false, err
	}
	done, err := s.repo.CopyToList(ctx, sub, targetListID, move)
	if err != nil {
		return false, fmt.Errorf("copy subscriber to list %s: %w", targetListID, err)
	}
	if done && move {
		sub.Status = domain.SubscriberMoved
	}
	return done, nil
}

// SetField stores value in the subscriber's field and mirrors it on sub.
func (s *Service) SetField(ctx context.Context, sub *domain.Subscriber, field domain.ListField, value string) error {
	if err := s.repo.UpsertFieldValue(ctx, sub.ID, field.ID, value); err != nil {
		return fmt.Errorf("set field %s: %w", field.Tag, err)
	}
	if field.Tag != "" {
		if sub.Fields == nil {
			sub.Fields = make(map[string]string)
		}
		sub.Fields[field.Tag] = value
	}
	return nil
}
