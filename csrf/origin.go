package csrf

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrOriginRejected is returned by the origin check enabled with
// WithOriginCheck. Protect answers it with 403.
var ErrOriginRejected = errors.New("csrf: cross-site origin")

// checkOrigin requires the Origin header, or the Referer when Origin is
// absent, to name allowed (r.Host when empty). An opaque "null" origin never
// matches.
func checkOrigin(r *http.Request, allowed string) error {
	if allowed == "" {
		allowed = r.Host
	}

	if origin := r.Header.Get("Origin"); origin != "" {
		if !hostMatches(origin, allowed) {
			return fmt.Errorf("%w: origin %q", ErrOriginRejected, origin)
		}
		return nil
	}
	ref := r.Header.Get("Referer")
	if ref == "" {
		return fmt.Errorf("%w: no origin or referer", ErrOriginRejected)
	}
	if !hostMatches(ref, allowed) {
		return fmt.Errorf("%w: referer host mismatch", ErrOriginRejected)
	}
	return nil
}

// hostMatches compares the host[:port] of rawURL with host, ignoring case.
func hostMatches(rawURL, host string) bool {
	if rawURL == "null" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, host)
}
