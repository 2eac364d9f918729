package content

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*$`)
	spaceReplacer = strings.NewReplacer(
		"&amp;", "&",
		"%5B", "[", "%5b", "[",
		"%5D", "]", "%5d", "]",
		" ", "%20",
		"\t", "", "\r", "", "\n", "",
	)
)

// Schemes a tracked link may never forward to.
var blockedSchemes = map[string]bool{
	"javascript": true,
	"vbscript":   true,
	"data":       true,
}

// NormalizeURL cleans a destination captured from campaign HTML: it trims
// whitespace, undoes HTML entity and bracket escaping, encodes inner spaces
// and turns scheme-relative links into https links.
func NormalizeURL(raw string) string {
	s := spaceReplacer.Replace(strings.TrimSpace(raw))
	if strings.HasPrefix(s, "//") {
		s = "https:" + s
	}
	return s
}

// IsValidURL reports whether s is a well-formed absolute URL that is safe to
// redirect to: any syntactically valid scheme except the script-capable
// ones, plus a host or an opaque part.
func IsValidURL(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme == "" || !schemePattern.MatchString(u.Scheme) {
		return false
	}
	if blockedSchemes[strings.ToLower(u.Scheme)] {
		return false
	}
	if u.Opaque != "" {
		return true
	}
	return u.Host != ""
}
