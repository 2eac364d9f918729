package engagement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/engagement-tracker/internal/content"
	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/metrics"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
	"github.com/ignite/engagement-tracker/internal/service/campaign"
	"github.com/ignite/engagement-tracker/internal/service/reaction"
	"github.com/ignite/engagement-tracker/internal/service/subscriber"
)

// Deps wires a Recorder. Dispatcher, Metrics and Clock are optional.
type Deps struct {
	Campaigns   Campaigns
	Subscribers Subscribers
	Events      EventRepository
	Guard       *Guard
	Eligibility *Eligibility
	Resolver    Resolver
	Dispatcher  Dispatcher
	Metrics     *metrics.Recorder
	Clock       func() time.Time
}

// Recorder records open and click events. It is safe for concurrent use.
type Recorder struct {
	campaigns   Campaigns
	subscribers Subscribers
	events      EventRepository
	guard       *Guard
	eligibility *Eligibility
	resolver    Resolver
	dispatcher  Dispatcher
	metrics     *metrics.Recorder
	now         func() time.Time
}

// NewRecorder creates a Recorder from d.
func NewRecorder(d Deps) *Recorder {
	now := d.Clock
	if now == nil {
		now = time.Now
	}
	return &Recorder{
		campaigns:   d.Campaigns,
		subscribers: d.Subscribers,
		events:      d.Events,
		guard:       d.Guard,
		eligibility: d.Eligibility,
		resolver:    d.Resolver,
		dispatcher:  d.Dispatcher,
		metrics:     d.Metrics,
		now:         now,
	}
}

// RecordOpen registers a rendering of the open pixel.
func (r *Recorder) RecordOpen(ctx context.Context, hit Hit) OpenResult {
	res := r.openHit(ctx, hit)
	r.metrics.Event(string(domain.EventOpen), string(res.Outcome))
	return res
}

func (r *Recorder) openHit(ctx context.Context, hit Hit) OpenResult {
	c, err := r.campaigns.Trackable(ctx, hit.CampaignUID)
	if err != nil {
		r.lookupFailed(domain.EventOpen, "campaign", hit, err)
		return OpenResult{Outcome: OutcomeNotFound}
	}
	sub, err := r.subscribers.Find(ctx, hit.SubscriberUID)
	if err != nil {
		r.lookupFailed(domain.EventOpen, "subscriber", hit, err)
		return OpenResult{Outcome: OutcomeNotFound}
	}
	return r.recordOpen(ctx, c, sub, hit)
}

// recordOpen is the open pipeline after lookups. The click path calls it
// directly for click-implies-open.
func (r *Recorder) recordOpen(ctx context.Context, c *domain.Campaign, sub *domain.Subscriber, hit Hit) OpenResult {
	at := r.now().UTC()
	key := Key(OpOpen, c.UID, sub.UID, at)

	held, ok := r.guard.Acquire(ctx, key)
	if !ok {
		r.metrics.Contended(string(domain.EventOpen))
		return OpenResult{Outcome: OutcomeContended}
	}
	defer held.Release(ctx)

	if r.guard.Recorded(ctx, key) {
		return OpenResult{Outcome: OutcomeDuplicate}
	}

	attempt := Attempt{Event: domain.EventOpen, Campaign: c, Subscriber: sub, IPAddress: hit.IPAddress, UserAgent: hit.UserAgent}
	if !r.eligibility.Check(ctx, attempt) {
		return OpenResult{Outcome: OutcomeIneligible}
	}

	r.refreshIP(ctx, sub, hit.IPAddress)

	ua := domain.TruncateUserAgent(hit.UserAgent)
	ev := &domain.OpenEvent{
		ID:           uuid.New().String(),
		CampaignID:   c.ID,
		SubscriberID: sub.ID,
		IPAddress:    hit.IPAddress,
		UserAgent:    ua,
		DeviceType:   DeviceType(ua),
		CreatedAt:    at,
	}
	if err := r.events.InsertOpen(ctx, ev); err != nil {
		logger.Error("open event insert failed",
			"campaign_uid", c.UID, "subscriber_uid", sub.UID, "error", err.Error())
		return OpenResult{Outcome: OutcomePersistFailed}
	}
	r.guard.MarkRecorded(ctx, key, at)

	r.dispatch(ctx, &reaction.Event{
		Type:       domain.EventOpen,
		EventID:    ev.ID,
		Campaign:   c,
		Subscriber: sub,
		List:       r.list(ctx, c),
		IPAddress:  hit.IPAddress,
		UserAgent:  ua,
		At:         at,
	})
	return OpenResult{Outcome: OutcomeRecorded, EventID: ev.ID}
}

// RecordClick registers a follow of a tracked link and decides where the
// visitor goes next.
func (r *Recorder) RecordClick(ctx context.Context, hit Hit) ClickDecision {
	d := r.recordClick(ctx, hit)
	r.metrics.Event(string(domain.EventClick), string(d.Outcome))
	return d
}

func (r *Recorder) recordClick(ctx context.Context, hit Hit) ClickDecision {
	c, err := r.campaigns.Trackable(ctx, hit.CampaignUID)
	if err != nil {
		r.lookupFailed(domain.EventClick, "campaign", hit, err)
		return ClickDecision{Action: ActionNotFound, Outcome: OutcomeNotFound}
	}
	sub, err := r.subscribers.Find(ctx, hit.SubscriberUID)
	if err != nil {
		r.lookupFailed(domain.EventClick, "subscriber", hit, err)
		return r.notFound(ctx, c)
	}

	at := r.now().UTC()
	key := Key(OpClick, c.UID, sub.UID, at)
	held, ok := r.guard.Acquire(ctx, key)
	if !ok {
		r.metrics.Contended(string(domain.EventClick))
		return ClickDecision{Action: ActionNoOp, Outcome: OutcomeContended}
	}
	defer held.Release(ctx)

	u, err := r.campaigns.TrackedURL(ctx, c, hit.Hash)
	if err != nil {
		r.lookupFailed(domain.EventClick, "url", hit, err)
		held.Release(ctx)
		return r.notFound(ctx, c)
	}

	ua := domain.TruncateUserAgent(hit.UserAgent)
	rev := &reaction.Event{
		Type:       domain.EventClick,
		Campaign:   c,
		Subscriber: sub,
		List:       r.list(ctx, c),
		URL:        u,
		IPAddress:  hit.IPAddress,
		UserAgent:  ua,
		At:         at,
	}

	attempt := Attempt{Event: domain.EventClick, Campaign: c, Subscriber: sub, IPAddress: hit.IPAddress, UserAgent: hit.UserAgent}
	if !r.eligibility.Check(ctx, attempt) {
		dest := r.resolver.Resolve(u.Destination, rev.ContentContext())
		held.Release(ctx)
		return r.redirect(c, sub, dest, ClickDecision{Outcome: OutcomeIneligible})
	}

	d := ClickDecision{Outcome: OutcomeRecorded}
	marker := key + ":" + u.Hash
	if r.guard.Recorded(ctx, marker) {
		d.Outcome = OutcomeDuplicate
	} else {
		r.refreshIP(ctx, sub, hit.IPAddress)
		ev := &domain.ClickEvent{
			ID:           uuid.New().String(),
			URLID:        u.ID,
			SubscriberID: sub.ID,
			IPAddress:    hit.IPAddress,
			UserAgent:    ua,
			DeviceType:   DeviceType(ua),
			CreatedAt:    at,
		}
		if err := r.events.InsertClick(ctx, ev); err != nil {
			logger.Error("click event insert failed",
				"campaign_uid", c.UID, "subscriber_uid", sub.UID, "url_id", u.ID, "error", err.Error())
			d.Outcome = OutcomePersistFailed
		} else {
			r.guard.MarkRecorded(ctx, marker, at)
			d.EventID = ev.ID
			rev.EventID = ev.ID
			r.dispatch(ctx, rev)
		}
	}

	dest := r.resolver.Resolve(u.Destination, rev.ContentContext())
	if c.Options.OpenTracking {
		held.Extend(ctx)
		d.Opened = r.openFromClick(ctx, c, sub, hit)
	}
	held.Release(ctx)

	return r.redirect(c, sub, dest, d)
}

// openFromClick records the campaign open for a subscriber whose first
// sign of engagement is a click.
func (r *Recorder) openFromClick(ctx context.Context, c *domain.Campaign, sub *domain.Subscriber, hit Hit) bool {
	opened, err := r.events.HasOpened(ctx, c.ID, sub.ID)
	if err != nil {
		logger.Warn("open lookup failed",
			"campaign_uid", c.UID, "subscriber_uid", sub.UID, "error", err.Error())
		return false
	}
	if opened {
		return false
	}
	res := r.recordOpen(ctx, c, sub, hit)
	r.metrics.Event(string(domain.EventOpen), string(res.Outcome))
	return res.Outcome == OutcomeRecorded
}

func (r *Recorder) redirect(c *domain.Campaign, sub *domain.Subscriber, dest string, d ClickDecision) ClickDecision {
	if !content.IsValidURL(dest) {
		logger.Warn("invalid click destination",
			"campaign_uid", c.UID, "subscriber_uid", sub.UID, "destination", dest)
		d.Action = ActionNotFound
		if d.Outcome == OutcomeRecorded || d.Outcome == OutcomeDuplicate {
			d.Outcome = OutcomeInvalidDestination
		}
		return d
	}
	d.Action = ActionRedirect
	d.Location = dest
	return d
}

// notFound falls back to the list's not-found redirect when it has one.
func (r *Recorder) notFound(ctx context.Context, c *domain.Campaign) ClickDecision {
	d := ClickDecision{Action: ActionNotFound, Outcome: OutcomeNotFound}
	l := r.list(ctx, c)
	if l == nil || l.SubscriberNotFoundRedirect == "" {
		return d
	}
	if dest := content.NormalizeURL(l.SubscriberNotFoundRedirect); content.IsValidURL(dest) {
		d.Action = ActionRedirect
		d.Location = dest
	}
	return d
}

func (r *Recorder) list(ctx context.Context, c *domain.Campaign) *domain.List {
	if c.ListID == "" {
		return nil
	}
	l, err := r.subscribers.List(ctx, c.ListID)
	if err != nil {
		logger.Warn("list lookup failed", "campaign_uid", c.UID, "list_id", c.ListID, "error", err.Error())
		return nil
	}
	return l
}

func (r *Recorder) refreshIP(ctx context.Context, sub *domain.Subscriber, ip string) {
	if _, err := r.subscribers.RefreshIP(ctx, sub, ip); err != nil {
		logger.Warn("subscriber ip update failed", "subscriber_uid", sub.UID, "error", err.Error())
	}
}

func (r *Recorder) dispatch(ctx context.Context, ev *reaction.Event) {
	if r.dispatcher == nil {
		return
	}
	if err := r.dispatcher.Dispatch(ctx, ev); err != nil {
		logger.Warn("side effects incomplete",
			"event", string(ev.Type),
			"event_id", ev.EventID,
			"campaign_uid", ev.Campaign.UID,
			"subscriber_uid", ev.Subscriber.UID,
			"error", err.Error(),
		)
	}
}

func (r *Recorder) lookupFailed(event domain.TrackingEventType, what string, hit Hit, err error) {
	fields := []interface{}{
		"event", string(event),
		"lookup", what,
		"campaign_uid", hit.CampaignUID,
		"subscriber_uid", hit.SubscriberUID,
	}
	if errors.Is(err, campaign.ErrNotFound) || errors.Is(err, campaign.ErrURLNotFound) || errors.Is(err, subscriber.ErrNotFound) {
		logger.Debug("tracking target not found", fields...)
		return
	}
	logger.Error("tracking lookup failed", append(fields, "error", err.Error())...)
}
