package content_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/engagement-tracker/internal/content"
	"github.com/ignite/engagement-tracker/internal/domain"
)

func testContext() content.Context {
	return content.Context{
		Campaign: &domain.Campaign{UID: "cmp123", Name: "Spring Sale", Subject: "Hello"},
		Subscriber: &domain.Subscriber{
			UID:       "sub456",
			Email:     "ann.lee@example.com",
			IPAddress: "203.0.113.9",
			Status:    domain.SubscriberConfirmed,
			Fields:    map[string]string{"FIRST_NAME": "Ann Marie", "LAST_NAME": "Lee"},
		},
		List: &domain.List{
			UID:     "lst789",
			Name:    "Customers",
			Company: domain.ListCompany{Name: "Acme & Co", Website: "https://acme.test"},
		},
		Now: time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC),
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  https://a.test/x  ", "https://a.test/x"},
		{"https://a.test/?a=1&amp;b=2", "https://a.test/?a=1&b=2"},
		{"https://a.test/?n=%5BFIRST_NAME%5D", "https://a.test/?n=[FIRST_NAME]"},
		{"https://a.test/a b", "https://a.test/a%20b"},
		{"//cdn.test/p", "https://cdn.test/p"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := content.NormalizeURL(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, content.NormalizeURL(got), "normalising twice changes nothing")
		})
	}
}

func TestIsValidURL(t *testing.T) {
	valid := []string{
		"https://example.com/p?n=Ann",
		"http://example.com",
		"mailto:someone@example.com",
		"tel:+15551234567",
		"myapp://open/item",
	}
	invalid := []string{
		"",
		"/relative/path",
		"example.com/no-scheme",
		"javascript:alert(1)",
		"JavaScript:alert(1)",
		"data:text/html;base64,AAAA",
		"https://exa mple.com",
		"http://",
		"1http://bad-scheme.test",
	}
	for _, u := range valid {
		assert.True(t, content.IsValidURL(u), u)
	}
	for _, u := range invalid {
		assert.False(t, content.IsValidURL(u), u)
	}
}

func TestParseTagsEscapesValues(t *testing.T) {
	tags := content.BuildTags(testContext())

	got := content.ParseTags("https://x.test/?n=[FIRST_NAME]&c=[COMPANY_NAME]&u=[UNKNOWN]", tags, content.URLValue)
	assert.Equal(t, "https://x.test/?n=Ann%20Marie&c=Acme%20%26%20Co&u=[UNKNOWN]", got)
}

func TestBuildTags(t *testing.T) {
	tags := content.BuildTags(testContext())

	assert.Equal(t, "ann.lee@example.com", tags["EMAIL"])
	assert.Equal(t, "example.com", tags["EMAIL_DOMAIN"])
	assert.Equal(t, "sub456", tags["SUBSCRIBER_UID"])
	assert.Equal(t, "cmp123", tags["CAMPAIGN_UID"])
	assert.Equal(t, "lst789", tags["LIST_UID"])
	assert.Equal(t, "2024", tags["CURRENT_YEAR"])
	assert.Equal(t, "2024-03-09", tags["DATE"])
	assert.Equal(t, "03/09/2024", tags["CURRENT_DATE"])
	assert.Equal(t, "2024-03-09 14:05:00", tags["DATETIME"])
}

func TestResolveTagDestination(t *testing.T) {
	r := content.NewResolver(nil)

	got := r.Resolve("https://shop.test/welcome?name=[FIRST_NAME]&id=[SUBSCRIBER_UID]", testContext())
	assert.Equal(t, "https://shop.test/welcome?name=Ann%20Marie&id=sub456", got)
	assert.True(t, content.IsValidURL(got))
}

func TestResolveWholeURLTag(t *testing.T) {
	r := content.NewResolver(nil)
	c := testContext()
	c.Subscriber.Fields["WEBSITE"] = "https://ann.example/blog"

	got := r.Resolve("[WEBSITE]", c)
	assert.Equal(t, "https://ann.example/blog", got)
	assert.True(t, content.IsValidURL(got))

	got = r.Resolve("[COMPANY_WEBSITE]", c)
	assert.Equal(t, "https://acme.test", got)
	assert.True(t, content.IsValidURL(got))
}

func TestResolveBaseTagWithQueryTag(t *testing.T) {
	r := content.NewResolver(nil)
	c := testContext()

	got := r.Resolve("[COMPANY_WEBSITE]/deals?co=[COMPANY_NAME]", c)
	assert.Equal(t, "https://acme.test/deals?co=Acme%20%26%20Co", got)
	assert.True(t, content.IsValidURL(got))
}

func TestResolveLiquidDestination(t *testing.T) {
	r := content.NewResolver(content.NewTemplateEngine())

	got := r.Resolve("https://shop.test/{{ campaign.uid }}?n={{ subscriber.first_name | urlencode }}", testContext())
	assert.Equal(t, "https://shop.test/cmp123?n=Ann%20Marie", got)
}

func TestResolveLiquidDisabled(t *testing.T) {
	r := content.NewResolver(nil)

	got := r.Resolve("https://shop.test/{{campaign.uid}}", testContext())
	assert.Equal(t, "https://shop.test/{{campaign.uid}}", got)
}

func TestResolveBrokenTemplateKeepsInput(t *testing.T) {
	r := content.NewResolver(content.NewTemplateEngine())

	got := r.Resolve("https://shop.test/{% if %}", testContext())
	assert.Equal(t, "https://shop.test/{%%20if%20%}", got)
}

func TestResolveScriptDestinationIsInvalid(t *testing.T) {
	r := content.NewResolver(content.NewTemplateEngine())

	got := r.Resolve("javascript:alert('[EMAIL]')", testContext())
	assert.False(t, content.IsValidURL(got))
}

func TestTemplateEngineDefaultFilter(t *testing.T) {
	te := content.NewTemplateEngine()

	out, err := te.Render(`{{ subscriber.nickname | default: "friend" }}`, content.Bindings(testContext()))
	require.NoError(t, err)
	assert.Equal(t, "friend", out)

	// cached path
	out, err = te.Render(`{{ subscriber.nickname | default: "friend" }}`, content.Bindings(testContext()))
	require.NoError(t, err)
	assert.Equal(t, "friend", out)
}

func TestBindingsNestExtraUnderEvent(t *testing.T) {
	c := testContext()
	c.Extra = map[string]string{"IP_ADDRESS": "198.51.100.4", "CAMPAIGN": "shadow"}

	b := content.Bindings(c)
	event, ok := b["event"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "198.51.100.4", event["ip_address"])
	assert.Equal(t, "shadow", event["campaign"])

	campaign, ok := b["campaign"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "cmp123", campaign["uid"])

	out, err := content.NewTemplateEngine().Render("{{ campaign.uid }}-{{ event.ip_address }}", b)
	require.NoError(t, err)
	assert.Equal(t, "cmp123-198.51.100.4", out)
}
