package flipt

import (
	"net/http"
	"net/url"
	"strings"
)

// headerTransport sets fixed headers on every request before delegating.
// The credential is only attached to requests for the service origin, so a
// redirect to another host never carries it.
type headerTransport struct {
	base          http.RoundTripper
	origin        *url.URL
	authorization string
	userAgent     string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	switch {
	case !t.sameOrigin(r.URL):
		r.Header.Del("Authorization")
	case t.authorization != "":
		r.Header.Set("Authorization", t.authorization)
	}
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", t.userAgent)
	}
	if r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", "application/json")
	}
	return t.base.RoundTrip(r)
}

func (t *headerTransport) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, t.origin.Scheme) && strings.EqualFold(u.Host, t.origin.Host)
}
