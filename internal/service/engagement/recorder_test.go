package engagement_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/engagement-tracker/internal/content"
	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/pkg/distlock"
	"github.com/ignite/engagement-tracker/internal/service/campaign"
	"github.com/ignite/engagement-tracker/internal/service/engagement"
	"github.com/ignite/engagement-tracker/internal/service/exclusion"
	"github.com/ignite/engagement-tracker/internal/service/reaction"
	"github.com/ignite/engagement-tracker/internal/service/subscriber"
)

// memCampaigns serves campaigns and links from memory.
type memCampaigns struct {
	campaigns map[string]*domain.Campaign   // keyed by uid
	urls      map[string]*domain.TrackedURL // keyed by campaign id + hash
}

func (m *memCampaigns) Trackable(_ context.Context, uid string) (*domain.Campaign, error) {
	c, ok := m.campaigns[uid]
	if !ok || c.IsPendingDelete() {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCampaigns) TrackedURL(_ context.Context, c *domain.Campaign, hash string) (*domain.TrackedURL, error) {
	u, ok := m.urls[c.ID+"/"+campaign.NormalizeHash(hash)]
	if !ok {
		return nil, campaign.ErrURLNotFound
	}
	return u, nil
}

// memSubscribers serves subscribers and lists from memory.
type memSubscribers struct {
	mu          sync.Mutex
	subscribers map[string]*domain.Subscriber
	lists       map[string]*domain.List
}

func (m *memSubscribers) Find(_ context.Context, uid string) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subscribers[uid]
	if !ok {
		return nil, subscriber.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubscribers) List(_ context.Context, listID string) (*domain.List, error) {
	l, ok := m.lists[listID]
	if !ok {
		return nil, subscriber.ErrListNotFound
	}
	return l, nil
}

func (m *memSubscribers) RefreshIP(_ context.Context, sub *domain.Subscriber, ip string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ip == "" || ip == sub.IPAddress {
		return false, nil
	}
	sub.IPAddress = ip
	m.subscribers[sub.UID].IPAddress = ip
	return true, nil
}

// memEvents stores events in memory.
type memEvents struct {
	mu        sync.Mutex
	opens     []domain.OpenEvent
	clicks    []domain.ClickEvent
	failOpen  error
	failClick error
}

func (m *memEvents) InsertOpen(_ context.Context, e *domain.OpenEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOpen != nil {
		return m.failOpen
	}
	m.opens = append(m.opens, *e)
	return nil
}

func (m *memEvents) InsertClick(_ context.Context, e *domain.ClickEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failClick != nil {
		return m.failClick
	}
	m.clicks = append(m.clicks, *e)
	return nil
}

func (m *memEvents) HasOpened(_ context.Context, campaignID, subscriberID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.opens {
		if o.CampaignID == campaignID && o.SubscriberID == subscriberID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memEvents) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.opens), len(m.clicks)
}

// spyDispatcher records dispatched events and checks they were persisted.
type spyDispatcher struct {
	mu     sync.Mutex
	events []*reaction.Event
	store  *memEvents
	err    error
	unsafe int
}

func (d *spyDispatcher) Dispatch(_ context.Context, ev *reaction.Event) error {
	opens, clicks := d.store.counts()
	d.mu.Lock()
	defer d.mu.Unlock()
	if ev.EventID == "" || (ev.Type == domain.EventOpen && opens == 0) || (ev.Type == domain.EventClick && clicks == 0) {
		d.unsafe++
	}
	d.events = append(d.events, ev)
	return d.err
}

func (d *spyDispatcher) count(t domain.TrackingEventType) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, ev := range d.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

type harness struct {
	campaigns   *memCampaigns
	subscribers *memSubscribers
	events      *memEvents
	dispatcher  *spyDispatcher
	locks       distlock.Factory
	mu          sync.Mutex
	now         time.Time
	rec         *engagement.Recorder
}

func newHarness(t *testing.T, filters ...engagement.Filter) *harness {
	t.Helper()
	_, client := newTestRedis(t)

	h := &harness{
		campaigns: &memCampaigns{
			campaigns: map[string]*domain.Campaign{
				"camp": {ID: "C1", UID: "camp", ListID: "L1", Name: "Launch", Status: domain.CampaignSent,
					Options: domain.CampaignOptions{OpenTracking: true, URLTracking: true}},
				"quiet": {ID: "C2", UID: "quiet", ListID: "L2", Status: domain.CampaignSent},
				"gone":  {ID: "C3", UID: "gone", ListID: "L1", Status: domain.CampaignPendingDelete},
			},
			urls: map[string]*domain.TrackedURL{
				"C1/hash1": {ID: "U1", CampaignID: "C1", Hash: "hash1", Destination: "https://example.com/[FIRST_NAME]"},
				"C1/hash2": {ID: "U2", CampaignID: "C1", Hash: "hash2", Destination: "https://example.com/pricing"},
				"C1/bad":   {ID: "U3", CampaignID: "C1", Hash: "bad", Destination: "javascript:alert(1)"},
				"C1/empty": {ID: "U4", CampaignID: "C1", Hash: "empty", Destination: "  "},
				"C2/hash1": {ID: "U5", CampaignID: "C2", Hash: "hash1", Destination: "https://example.org/"},
			},
		},
		subscribers: &memSubscribers{
			subscribers: map[string]*domain.Subscriber{
				"ana":   {ID: "S1", UID: "ana", ListID: "L1", Email: "ana@example.com", Status: domain.SubscriberConfirmed, Fields: map[string]string{"FIRST_NAME": "Ana"}},
				"moved": {ID: "S2", UID: "moved", ListID: "L1", Email: "m@example.com", Status: domain.SubscriberMoved},
				"unc":   {ID: "S3", UID: "unc", ListID: "L1", Email: "u@example.com", Status: domain.SubscriberUnconfirmed},
				"unsub": {ID: "S4", UID: "unsub", ListID: "L1", Email: "x@example.com", Status: domain.SubscriberUnsubscribed},
			},
			lists: map[string]*domain.List{
				"L1": {ID: "L1", UID: "list1", Name: "Customers"},
				"L2": {ID: "L2", UID: "list2", SubscriberNotFoundRedirect: "https://example.org/sorry"},
			},
		},
		events: &memEvents{},
		locks:  distlock.NewFactory(client, nil, 30*time.Second),
		now:    time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC),
	}
	h.dispatcher = &spyDispatcher{store: h.events}

	h.rec = h.instance(engagement.NewRedisMarkers(client), filters...)
	return h
}

// instance builds a recorder sharing h's stores and lock factory, as a
// second process of the same deployment would, with its own marker store.
func (h *harness) instance(markers engagement.Markers, filters ...engagement.Filter) *engagement.Recorder {
	guard := engagement.NewGuard(h.locks, markers,
		engagement.GuardOptions{Timeout: 5 * time.Second, Retry: 2 * time.Millisecond})

	return engagement.NewRecorder(engagement.Deps{
		Campaigns:   h.campaigns,
		Subscribers: h.subscribers,
		Events:      h.events,
		Guard:       guard,
		Eligibility: engagement.NewEligibility(filters...),
		Resolver:    content.NewResolver(nil),
		Dispatcher:  h.dispatcher,
		Clock: func() time.Time {
			h.mu.Lock()
			defer h.mu.Unlock()
			return h.now
		},
	})
}

func open(campaignUID, subscriberUID string) engagement.Hit {
	return engagement.Hit{CampaignUID: campaignUID, SubscriberUID: subscriberUID, IPAddress: "198.51.100.4", UserAgent: "Mozilla/5.0"}
}

func click(campaignUID, subscriberUID, hash string) engagement.Hit {
	hit := open(campaignUID, subscriberUID)
	hit.Hash = hash
	return hit
}

func TestRecordOpenOncePerHour(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.rec.RecordOpen(ctx, open("camp", "ana"))
	assert.Equal(t, engagement.OutcomeRecorded, first.Outcome)
	assert.NotEmpty(t, first.EventID)

	second := h.rec.RecordOpen(ctx, open("camp", "ana"))
	assert.Equal(t, engagement.OutcomeDuplicate, second.Outcome)

	opens, _ := h.events.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, h.dispatcher.count(domain.EventOpen))

	ev := h.events.opens[0]
	assert.Equal(t, "C1", ev.CampaignID)
	assert.Equal(t, "S1", ev.SubscriberID)
	assert.Equal(t, "198.51.100.4", ev.IPAddress)
	assert.Equal(t, "desktop", ev.DeviceType)
	assert.Equal(t, "198.51.100.4", h.subscribers.subscribers["ana"].IPAddress)

	h.now = h.now.Add(time.Hour)
	third := h.rec.RecordOpen(ctx, open("camp", "ana"))
	assert.Equal(t, engagement.OutcomeRecorded, third.Outcome, "next hour bucket counts again")
}

func TestRecordOpenConcurrentSingleRow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const n = 20
	outcomes := make(chan engagement.Outcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes <- h.rec.RecordOpen(ctx, open("camp", "ana")).Outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	tally := map[engagement.Outcome]int{}
	for o := range outcomes {
		tally[o]++
	}
	opens, _ := h.events.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, tally[engagement.OutcomeRecorded])
	assert.Equal(t, n-1, tally[engagement.OutcomeDuplicate])
}

func TestRecordOpenOncePerHourAcrossInstances(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	table := newTableMarkers()
	a := h.instance(engagement.NewCachedMarkers(table))
	b := h.instance(engagement.NewCachedMarkers(table))

	assert.Equal(t, engagement.OutcomeRecorded, a.RecordOpen(ctx, open("camp", "ana")).Outcome)
	assert.Equal(t, engagement.OutcomeDuplicate, b.RecordOpen(ctx, open("camp", "ana")).Outcome)

	opens, _ := h.events.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, h.dispatcher.count(domain.EventOpen))
}

func TestRecordOpenIneligibleStatuses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, uid := range []string{"unc", "unsub"} {
		res := h.rec.RecordOpen(ctx, open("camp", uid))
		assert.Equal(t, engagement.OutcomeIneligible, res.Outcome, uid)
	}
	opens, _ := h.events.counts()
	assert.Zero(t, opens)
	assert.Zero(t, h.dispatcher.count(domain.EventOpen))

	res := h.rec.RecordOpen(ctx, open("camp", "moved"))
	assert.Equal(t, engagement.OutcomeRecorded, res.Outcome, "moved subscribers are tracked")
}

func TestRecordOpenNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.Equal(t, engagement.OutcomeNotFound, h.rec.RecordOpen(ctx, open("nope", "ana")).Outcome)
	assert.Equal(t, engagement.OutcomeNotFound, h.rec.RecordOpen(ctx, open("gone", "ana")).Outcome)
	assert.Equal(t, engagement.OutcomeNotFound, h.rec.RecordOpen(ctx, open("camp", "nobody")).Outcome)
}

func TestRecordOpenContended(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	other := h.locks("tracking:" + engagement.Key(engagement.OpOpen, "camp", "ana", h.now))
	ok, err := other.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, client := newTestRedis(t)
	short := engagement.NewRecorder(engagement.Deps{
		Campaigns:   h.campaigns,
		Subscribers: h.subscribers,
		Events:      h.events,
		Guard:       engagement.NewGuard(h.locks, engagement.NewRedisMarkers(client), engagement.GuardOptions{Timeout: 20 * time.Millisecond, Retry: 5 * time.Millisecond}),
		Eligibility: engagement.NewEligibility(),
		Resolver:    content.NewResolver(nil),
		Clock:       func() time.Time { return h.now },
	})

	assert.Equal(t, engagement.OutcomeContended, short.RecordOpen(ctx, open("camp", "ana")).Outcome)
	d := short.RecordClick(ctx, click("camp", "ana", "hash2"))
	assert.Equal(t, engagement.OutcomeRecorded, d.Outcome, "click key differs from open key")
	assert.False(t, d.Opened, "nested open is contended too")

	opens, clicks := h.events.counts()
	assert.Zero(t, opens)
	assert.Equal(t, 1, clicks)
	require.NoError(t, other.Release(ctx))
}

func TestRecordClickContendedIsNoOp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	other := h.locks("tracking:" + engagement.Key(engagement.OpClick, "camp", "ana", h.now))
	ok, err := other.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer other.Release(ctx)

	_, client := newTestRedis(t)
	short := engagement.NewRecorder(engagement.Deps{
		Campaigns:   h.campaigns,
		Subscribers: h.subscribers,
		Events:      h.events,
		Guard:       engagement.NewGuard(h.locks, engagement.NewRedisMarkers(client), engagement.GuardOptions{}),
		Eligibility: engagement.NewEligibility(),
		Resolver:    content.NewResolver(nil),
		Clock:       func() time.Time { return h.now },
	})

	d := short.RecordClick(ctx, click("camp", "ana", "hash1"))
	assert.Equal(t, engagement.ActionNoOp, d.Action)
	assert.Equal(t, engagement.OutcomeContended, d.Outcome)
	assert.Empty(t, d.Location)
}

func TestRecordOpenPersistFailureSkipsSideEffects(t *testing.T) {
	h := newHarness(t)
	h.events.failOpen = errors.New("disk full")

	res := h.rec.RecordOpen(context.Background(), open("camp", "ana"))
	assert.Equal(t, engagement.OutcomePersistFailed, res.Outcome)
	assert.Zero(t, h.dispatcher.count(domain.EventOpen))

	h.events.failOpen = nil
	res = h.rec.RecordOpen(context.Background(), open("camp", "ana"))
	assert.Equal(t, engagement.OutcomeRecorded, res.Outcome, "failed writes do not mark the bucket")
}

func TestDispatcherErrorDoesNotChangeOutcome(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.err = errors.New("webhook: queue down")

	res := h.rec.RecordOpen(context.Background(), open("camp", "ana"))
	assert.Equal(t, engagement.OutcomeRecorded, res.Outcome)
	assert.Zero(t, h.dispatcher.unsafe, "side effects only after the row exists")
}

func TestRecordClickResolvesTags(t *testing.T) {
	h := newHarness(t)

	d := h.rec.RecordClick(context.Background(), click("camp", "ana", "hash1"))
	assert.Equal(t, engagement.ActionRedirect, d.Action)
	assert.Equal(t, "https://example.com/Ana", d.Location)
	assert.Equal(t, engagement.OutcomeRecorded, d.Outcome)

	_, clicks := h.events.counts()
	require.Equal(t, 1, clicks)
	assert.Equal(t, "U1", h.events.clicks[0].URLID)
	assert.Equal(t, 1, h.dispatcher.count(domain.EventClick))
	assert.Zero(t, h.dispatcher.unsafe)
}

func TestRecordClickNormalisesHash(t *testing.T) {
	h := newHarness(t)

	d := h.rec.RecordClick(context.Background(), click("camp", "ana", "has-h.2="))
	assert.Equal(t, engagement.ActionRedirect, d.Action)
	assert.Equal(t, "https://example.com/pricing", d.Location)
}

func TestRecordClickImpliesOpen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	d := h.rec.RecordClick(ctx, click("camp", "ana", "hash1"))
	assert.True(t, d.Opened)
	opens, _ := h.events.counts()
	assert.Equal(t, 1, opens)

	d = h.rec.RecordClick(ctx, click("camp", "ana", "hash2"))
	assert.False(t, d.Opened)
	opens, clicks := h.events.counts()
	assert.Equal(t, 1, opens, "already opened")
	assert.Equal(t, 2, clicks, "different links in the same hour both count")
}

func TestRecordClickWithoutOpenTracking(t *testing.T) {
	h := newHarness(t)

	d := h.rec.RecordClick(context.Background(), click("quiet", "ana", "hash1"))
	assert.Equal(t, engagement.ActionRedirect, d.Action)
	assert.False(t, d.Opened)
	opens, clicks := h.events.counts()
	assert.Zero(t, opens)
	assert.Equal(t, 1, clicks)
}

func TestRecordClickDuplicateStillRedirects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.rec.RecordClick(ctx, click("camp", "ana", "hash2"))
	d := h.rec.RecordClick(ctx, click("camp", "ana", "hash2"))
	assert.Equal(t, engagement.OutcomeDuplicate, d.Outcome)
	assert.Equal(t, engagement.ActionRedirect, d.Action)
	assert.Equal(t, "https://example.com/pricing", d.Location)

	_, clicks := h.events.counts()
	assert.Equal(t, 1, clicks)
}

func TestRecordClickNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	d := h.rec.RecordClick(ctx, click("camp", "ana", "unknown"))
	assert.Equal(t, engagement.ActionNotFound, d.Action)

	d = h.rec.RecordClick(ctx, click("nope", "ana", "hash1"))
	assert.Equal(t, engagement.ActionNotFound, d.Action)

	d = h.rec.RecordClick(ctx, click("gone", "ana", "hash1"))
	assert.Equal(t, engagement.ActionNotFound, d.Action)

	d = h.rec.RecordClick(ctx, click("camp", "nobody", "hash1"))
	assert.Equal(t, engagement.ActionNotFound, d.Action)

	_, clicks := h.events.counts()
	assert.Zero(t, clicks)
}

func TestRecordClickListFallback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	d := h.rec.RecordClick(ctx, click("quiet", "ana", "missing"))
	assert.Equal(t, engagement.ActionRedirect, d.Action)
	assert.Equal(t, "https://example.org/sorry", d.Location)
	assert.Equal(t, engagement.OutcomeNotFound, d.Outcome)

	d = h.rec.RecordClick(ctx, click("quiet", "nobody", "hash1"))
	assert.Equal(t, engagement.ActionRedirect, d.Action)
	assert.Equal(t, "https://example.org/sorry", d.Location)
}

func TestRecordClickIneligibleStillRedirects(t *testing.T) {
	policy := exclusion.NewService(nil, []string{"198.51.100.4"}, time.Minute)
	h := newHarness(t, engagement.IPFilter(policy))

	d := h.rec.RecordClick(context.Background(), click("camp", "ana", "hash1"))
	assert.Equal(t, engagement.ActionRedirect, d.Action)
	assert.Equal(t, "https://example.com/Ana", d.Location)
	assert.Equal(t, engagement.OutcomeIneligible, d.Outcome)

	opens, clicks := h.events.counts()
	assert.Zero(t, clicks)
	assert.Zero(t, opens)
	assert.Zero(t, h.dispatcher.count(domain.EventClick))
}

func TestRecordClickUnconfirmedStillRedirects(t *testing.T) {
	h := newHarness(t)

	d := h.rec.RecordClick(context.Background(), click("camp", "unc", "hash2"))
	assert.Equal(t, engagement.ActionRedirect, d.Action)
	assert.Equal(t, engagement.OutcomeIneligible, d.Outcome)
	_, clicks := h.events.counts()
	assert.Zero(t, clicks)
}

func TestRecordClickInvalidDestination(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, hash := range []string{"bad", "empty"} {
		d := h.rec.RecordClick(ctx, click("camp", "ana", hash))
		assert.Equal(t, engagement.ActionNotFound, d.Action, hash)
		assert.Equal(t, engagement.OutcomeInvalidDestination, d.Outcome, hash)
		assert.Empty(t, d.Location)
	}
}

func TestRecordClickPersistFailureStillRedirects(t *testing.T) {
	h := newHarness(t)
	h.events.failClick = errors.New("connection reset")

	d := h.rec.RecordClick(context.Background(), click("camp", "ana", "hash2"))
	assert.Equal(t, engagement.ActionRedirect, d.Action)
	assert.Equal(t, engagement.OutcomePersistFailed, d.Outcome)
	assert.Zero(t, h.dispatcher.count(domain.EventClick))
}

func TestRecordClickTruncatesUserAgent(t *testing.T) {
	h := newHarness(t)
	hit := click("camp", "ana", "hash2")
	hit.UserAgent = string(make([]byte, 400))

	h.rec.RecordClick(context.Background(), hit)
	require.Len(t, h.events.clicks, 1)
	assert.Len(t, h.events.clicks[0].UserAgent, domain.MaxUserAgentLength)
}
