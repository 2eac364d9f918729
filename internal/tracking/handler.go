package tracking

import (
	"context"
	"net/http"
	"net/netip"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ignite/engagement-tracker/internal/pkg/httputil"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
	"github.com/ignite/engagement-tracker/internal/service/engagement"
)

// Recorder is the engagement pipeline behind the tracking endpoints.
type Recorder interface {
	RecordOpen(ctx context.Context, hit engagement.Hit) engagement.OpenResult
	RecordClick(ctx context.Context, hit engagement.Hit) engagement.ClickDecision
}

// Handler serves the open pixel and the click redirect.
type Handler struct {
	rec Recorder
}

func NewHandler(rec Recorder) *Handler {
	return &Handler{rec: rec}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Get("/campaigns/{campaignUID}/track-opening/{subscriberUID}", h.HandleOpen)
	r.Get("/campaigns/{campaignUID}/track-url/{subscriberUID}/{hash}", h.HandleClick)
	r.Get("/health", h.HandleHealth)
	return r
}

// HandleOpen answers every open with the same empty, uncacheable 200 so
// mail clients learn nothing about the outcome.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	hit := engagement.Hit{
		CampaignUID:   chi.URLParam(r, "campaignUID"),
		SubscriberUID: chi.URLParam(r, "subscriberUID"),
		IPAddress:     clientIP(r),
		UserAgent:     r.UserAgent(),
	}
	res := h.rec.RecordOpen(r.Context(), hit)

	logger.Debug("open tracked",
		"campaign_uid", hit.CampaignUID, "subscriber_uid", hit.SubscriberUID, "outcome", string(res.Outcome))
	servePixel(w)
}

func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	hit := engagement.Hit{
		CampaignUID:   chi.URLParam(r, "campaignUID"),
		SubscriberUID: chi.URLParam(r, "subscriberUID"),
		Hash:          chi.URLParam(r, "hash"),
		IPAddress:     clientIP(r),
		UserAgent:     r.UserAgent(),
	}
	d := h.rec.RecordClick(r.Context(), hit)

	logger.Debug("click tracked",
		"campaign_uid", hit.CampaignUID, "subscriber_uid", hit.SubscriberUID,
		"action", d.Action.String(), "outcome", string(d.Outcome))

	switch d.Action {
	case engagement.ActionRedirect:
		http.Redirect(w, r, d.Location, http.StatusMovedPermanently)
	case engagement.ActionNoOp:
		httputil.Empty(w, http.StatusOK)
	default:
		httputil.NotFound(w, "page not found")
	}
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

func servePixel(w http.ResponseWriter) {
	httputil.NoStore(w)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	httputil.Empty(w, http.StatusOK)
}

// clientIP returns the address middleware.RealIP settled on, or "" when
// RemoteAddr is not an IP. Zones are dropped.
func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if ap, err := netip.ParseAddrPort(addr); err == nil {
		return ap.Addr().WithZone("").Unmap().String()
	}
	if ip, err := netip.ParseAddr(addr); err == nil {
		return ip.WithZone("").Unmap().String()
	}
	return ""
}
