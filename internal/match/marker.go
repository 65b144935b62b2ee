package match

import (
	"net/url"
	"strings"
)

const (
	// MarkerParam is the query parameter that tells a page to run its
	// flow without user action.
	MarkerParam = "auto_signin"
	// SessionFlagKey is the session storage key keeping the marker alive
	// across same-tab redirects.
	SessionFlagKey = "signin:auto:flag"
)

// AppendMarker adds the auto-run marker to rawURL.
func AppendMarker(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		if strings.Contains(rawURL, "?") {
			return rawURL + "&" + MarkerParam + "=1"
		}
		return rawURL + "?" + MarkerParam + "=1"
	}
	q := u.Query()
	q.Set(MarkerParam, "1")
	u.RawQuery = q.Encode()
	return u.String()
}

// HasMarker reports whether rawURL carries the auto-run marker, either
// in the query string or in the fragment.
func HasMarker(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.Contains(rawURL, MarkerParam+"=1")
	}
	if u.Query().Get(MarkerParam) == "1" {
		return true
	}
	return strings.Contains(u.Fragment, MarkerParam+"=1")
}
