package content

import (
	"fmt"
	"strings"
	"time"

	"github.com/osteele/liquid"
	gocache "github.com/patrickmn/go-cache"
)

// Parsed templates are cached by source text; destinations repeat for every
// subscriber of a campaign.
const (
	templateCacheTTL     = 10 * time.Minute
	templateCacheCleanup = 15 * time.Minute
)

// TemplateEngine renders Liquid expressions embedded in destinations.
type TemplateEngine struct {
	engine *liquid.Engine
	cache  *gocache.Cache
}

// NewTemplateEngine creates an engine with the link-safe filter set.
func NewTemplateEngine() *TemplateEngine {
	te := &TemplateEngine{
		engine: liquid.NewEngine(),
		cache:  gocache.New(templateCacheTTL, templateCacheCleanup),
	}
	te.registerFilters()
	return te
}

func (te *TemplateEngine) registerFilters() {
	// {{ subscriber.first_name | default: "friend" }}
	te.engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return fallback
		}
		return value
	})

	te.engine.RegisterFilter("capitalize", func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	})

	te.engine.RegisterFilter("urlencode", func(s string) string {
		return URLValue(s)
	})

	te.engine.RegisterFilter("email_domain", func(s string) string {
		if _, d, ok := strings.Cut(s, "@"); ok {
			return d
		}
		return ""
	})
}

// IsTemplate reports whether s carries Liquid output or tag markup.
func IsTemplate(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "{%")
}

// Render evaluates src against bindings. On a parse or render error the
// original text is returned together with the error.
func (te *TemplateEngine) Render(src string, bindings map[string]interface{}) (string, error) {
	var tpl *liquid.Template
	if cached, ok := te.cache.Get(src); ok {
		tpl = cached.(*liquid.Template)
	} else {
		parsed, err := te.engine.ParseString(src)
		if err != nil {
			return src, fmt.Errorf("parse template: %w", err)
		}
		te.cache.SetDefault(src, parsed)
		tpl = parsed
	}

	out, err := tpl.RenderString(bindings)
	if err != nil {
		return src, fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

// Bindings exposes c to templates as subscriber, campaign, list and company
// objects. Subscriber custom fields are available under their lower-cased
// tag, e.g. subscriber.first_name; extra values live under event, e.g.
// event.ip_address.
func Bindings(c Context) map[string]interface{} {
	subscriber := map[string]interface{}{}
	if s := c.Subscriber; s != nil {
		for tag, v := range s.Fields {
			subscriber[strings.ToLower(tag)] = v
		}
		subscriber["uid"] = s.UID
		subscriber["email"] = s.Field("EMAIL")
		subscriber["ip_address"] = s.IPAddress
		subscriber["status"] = string(s.Status)
		subscriber["source"] = s.Source
	}

	campaign := map[string]interface{}{}
	if cp := c.Campaign; cp != nil {
		campaign["uid"] = cp.UID
		campaign["name"] = cp.Name
		campaign["subject"] = cp.Subject
		campaign["from_name"] = cp.FromName
	}

	list := map[string]interface{}{}
	company := map[string]interface{}{}
	if l := c.List; l != nil {
		list["uid"] = l.UID
		list["name"] = l.Name
		list["display_name"] = l.DisplayName
		list["from_name"] = l.FromName
		company["name"] = l.Company.Name
		company["website"] = l.Company.Website
		company["address"] = l.Company.Address
		company["city"] = l.Company.City
		company["country"] = l.Company.Country
	}

	event := map[string]interface{}{}
	for k, v := range c.Extra {
		event[strings.ToLower(k)] = v
	}

	return map[string]interface{}{
		"subscriber": subscriber,
		"campaign":   campaign,
		"list":       list,
		"company":    company,
		"event":      event,
	}
}
