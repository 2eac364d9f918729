package exclusion

import (
	"context"
	"net/netip"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
)

const rulesKey = "ip_exclusions"

type rule struct {
	prefix netip.Prefix
	entry  domain.IPExclusion
}

// Service implements the tracking IP-exclusion policy. It is safe for
// concurrent use.
type Service struct {
	repo   Repository
	static []rule
	cache  *gocache.Cache
}

// NewService creates an exclusion service. patterns are the configured
// entries, applied to every event type. repo may be nil.
func NewService(repo Repository, patterns []string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Minute
	}
	s := &Service{
		repo:  repo,
		cache: gocache.New(ttl, 2*ttl),
	}
	for _, p := range patterns {
		e := domain.IPExclusion{Pattern: p, Action: domain.ExcludeAll, Source: domain.ExclusionFromConfig}
		if r, ok := compile(e); ok {
			s.static = append(s.static, r)
		}
	}
	return s
}

// CanTrack reports whether an event of the given type coming from ip may be
// recorded. Unparseable or empty addresses are tracked.
func (s *Service) CanTrack(ctx context.Context, ip string, event domain.TrackingEventType) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return true
	}
	addr = addr.Unmap()

	for _, r := range s.rules(ctx) {
		if r.entry.Covers(event) && r.prefix.Contains(addr) {
			logger.Debug("tracking excluded by ip rule",
				"ip", addr.String(), "pattern", r.entry.Pattern, "source", string(r.entry.Source), "event", string(event))
			return false
		}
	}
	return true
}

// Invalidate drops the cached rule set so the next check reloads it.
func (s *Service) Invalidate() {
	s.cache.Delete(rulesKey)
}

func (s *Service) rules(ctx context.Context) []rule {
	if cached, ok := s.cache.Get(rulesKey); ok {
		return cached.([]rule)
	}

	out := append([]rule(nil), s.static...)
	if s.repo != nil {
		entries, err := s.repo.ListIPExclusions(ctx)
		if err != nil {
			logger.Warn("load ip exclusions failed, using configured entries only", "error", err.Error())
			return out
		}
		for _, e := range entries {
			if r, ok := compile(e); ok {
				out = append(out, r)
			}
		}
	}
	s.cache.SetDefault(rulesKey, out)
	return out
}

func compile(e domain.IPExclusion) (rule, bool) {
	p := strings.TrimSpace(e.Pattern)
	if p == "" {
		return rule{}, false
	}
	if strings.Contains(p, "/") {
		prefix, err := netip.ParsePrefix(p)
		if err != nil {
			logger.Warn("skipping invalid ip exclusion", "pattern", p, "error", err.Error())
			return rule{}, false
		}
		return rule{prefix: prefix.Masked(), entry: e}, true
	}
	addr, err := netip.ParseAddr(p)
	if err != nil {
		logger.Warn("skipping invalid ip exclusion", "pattern", p, "error", err.Error())
		return rule{}, false
	}
	addr = addr.Unmap()
	return rule{prefix: netip.PrefixFrom(addr, addr.BitLen()), entry: e}, true
}
