package campaign_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/service/campaign"
)

// memRepo is an in-memory campaign repository for unit testing.
type memRepo struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign   // keyed by uid
	urls      map[string]*domain.TrackedURL // keyed by campaign id + hash
	lookups   []string
}

func newMemRepo() *memRepo {
	return &memRepo{
		campaigns: make(map[string]*domain.Campaign),
		urls:      make(map[string]*domain.TrackedURL),
	}
}

func (m *memRepo) FindByUID(_ context.Context, uid string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[uid]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) FindURLByHash(_ context.Context, campaignID, hash string) (*domain.TrackedURL, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups = append(m.lookups, hash)
	u, ok := m.urls[campaignID+"/"+hash]
	if !ok {
		return nil, campaign.ErrURLNotFound
	}
	cp := *u
	return &cp, nil
}

func seed(m *memRepo, c domain.Campaign) {
	m.campaigns[c.UID] = &c
}

func TestTrackable(t *testing.T) {
	repo := newMemRepo()
	seed(repo, domain.Campaign{ID: "1", UID: "live", Status: domain.CampaignSent})
	seed(repo, domain.Campaign{ID: "2", UID: "doomed", Status: domain.CampaignPendingDelete})
	seed(repo, domain.Campaign{ID: "3", UID: "paused", Status: domain.CampaignPaused})
	svc := campaign.NewService(repo)
	ctx := context.Background()

	c, err := svc.Trackable(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "1", c.ID)

	c, err = svc.Trackable(ctx, "paused")
	require.NoError(t, err)
	assert.Equal(t, "3", c.ID)

	_, err = svc.Trackable(ctx, "doomed")
	assert.True(t, errors.Is(err, campaign.ErrNotFound), "pending-delete campaigns are invisible")

	_, err = svc.Trackable(ctx, "missing")
	assert.True(t, errors.Is(err, campaign.ErrNotFound))

	_, err = svc.Trackable(ctx, "")
	assert.True(t, errors.Is(err, campaign.ErrNotFound))
}

func TestTrackedURLNormalisesHash(t *testing.T) {
	repo := newMemRepo()
	c := &domain.Campaign{ID: "7", UID: "c7"}
	repo.urls["7/abc123def"] = &domain.TrackedURL{ID: "u1", CampaignID: "7", Hash: "abc123def", Destination: "https://x.test"}
	svc := campaign.NewService(repo)

	u, err := svc.TrackedURL(context.Background(), c, "abc-123.def=")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, []string{"abc123def"}, repo.lookups)

	_, err = svc.TrackedURL(context.Background(), c, "nope")
	assert.True(t, errors.Is(err, campaign.ErrURLNotFound))

	_, err = svc.TrackedURL(context.Background(), c, "._-= ")
	assert.True(t, errors.Is(err, campaign.ErrURLNotFound))
	assert.Len(t, repo.lookups, 2, "empty hashes never reach the repository")
}

func TestNormalizeHash(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"abcdef", "abcdef"},
		{"ab.cd-ef_gh=ij kl", "abcdefghijkl"},
		{"", ""},
		{strings.Repeat("a", 60), strings.Repeat("a", 40)},
		{strings.Repeat("a.", 50), strings.Repeat("a", 40)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, campaign.NormalizeHash(tt.in), tt.in)
	}
}

func TestNormalizeHashIdempotent(t *testing.T) {
	inputs := []string{
		"", "abc", "a-b-c", "==..__--  ", strings.Repeat("x_", 45),
		"3f2a9c1e8b7d6a5f4e3d2c1b0a9f8e7d6c5b4a39extra", "ünï.cödé",
	}
	for _, in := range inputs {
		once := campaign.NormalizeHash(in)
		assert.Equal(t, once, campaign.NormalizeHash(once), in)
		assert.LessOrEqual(t, len(once), campaign.MaxHashLength)
	}
}
