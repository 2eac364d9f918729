package content

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// Context carries everything the tag and template passes can see.
// Extra holds event-scoped tags such as IP_ADDRESS or URL.
type Context struct {
	Campaign   *domain.Campaign
	Subscriber *domain.Subscriber
	List       *domain.List
	Extra      map[string]string
	Now        time.Time
}

var tagPattern = regexp.MustCompile(`\[([A-Z][A-Z0-9_]*)\]`)

// HasTags reports whether s contains at least one bracketed tag.
func HasTags(s string) bool {
	return tagPattern.MatchString(s)
}

// BuildTags returns the tag → value map for c. Subscriber list fields come
// first so the built-in tags win on a name clash.
func BuildTags(c Context) map[string]string {
	now := c.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	tags := map[string]string{
		"CURRENT_YEAR":  strconv.Itoa(now.Year()),
		"CURRENT_MONTH": now.Format("01"),
		"CURRENT_DAY":   now.Format("02"),
		"CURRENT_DATE":  now.Format("01/02/2006"),
		"DATE":          now.Format("2006-01-02"),
		"DATETIME":      now.Format("2006-01-02 15:04:05"),
	}

	if s := c.Subscriber; s != nil {
		for tag, v := range s.Fields {
			tags[strings.ToUpper(tag)] = v
		}
		tags["EMAIL"] = s.Field("EMAIL")
		tags["SUBSCRIBER_UID"] = s.UID
		tags["SUBSCRIBER_IP"] = s.IPAddress
		tags["SUBSCRIBER_STATUS"] = string(s.Status)
		if !s.CreatedAt.IsZero() {
			tags["SUBSCRIBER_DATE_ADDED"] = s.CreatedAt.UTC().Format("2006-01-02 15:04:05")
		}
		if local, domainPart, ok := strings.Cut(tags["EMAIL"], "@"); ok {
			tags["EMAIL_NAME"] = local
			tags["EMAIL_DOMAIN"] = domainPart
		}
	}

	if cp := c.Campaign; cp != nil {
		tags["CAMPAIGN_UID"] = cp.UID
		tags["CAMPAIGN_NAME"] = cp.Name
		tags["CAMPAIGN_SUBJECT"] = cp.Subject
		tags["CAMPAIGN_FROM_NAME"] = cp.FromName
	}

	if l := c.List; l != nil {
		tags["LIST_UID"] = l.UID
		tags["LIST_NAME"] = l.Name
		tags["LIST_DISPLAY_NAME"] = l.DisplayName
		tags["LIST_FROM_NAME"] = l.FromName
		tags["COMPANY_NAME"] = l.Company.Name
		tags["COMPANY_WEBSITE"] = l.Company.Website
		tags["COMPANY_ADDRESS"] = l.Company.Address
		tags["COMPANY_CITY"] = l.Company.City
		tags["COMPANY_COUNTRY"] = l.Company.Country
	}

	for tag, v := range c.Extra {
		tags[strings.ToUpper(tag)] = v
	}
	return tags
}

// ParseTags replaces every known [TAG] in s. Unknown tags are left in
// place. A nil escape inserts values verbatim.
func ParseTags(s string, tags map[string]string, escape func(string) string) string {
	return tagPattern.ReplaceAllStringFunc(s, func(m string) string {
		v, ok := tags[m[1:len(m)-1]]
		if !ok {
			return m
		}
		if escape != nil {
			return escape(v)
		}
		return v
	})
}

// ParseURLTags replaces the [TAG]s of a URL. Values before the query
// string go in verbatim, so a tag may carry a whole address or path;
// values inside the query are escaped with URLValue.
func ParseURLTags(s string, tags map[string]string) string {
	base, query, ok := strings.Cut(s, "?")
	base = ParseTags(base, tags, nil)
	if !ok {
		return base
	}
	return base + "?" + ParseTags(query, tags, URLValue)
}

// URLValue escapes a tag value for use anywhere inside a URL.
func URLValue(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}
