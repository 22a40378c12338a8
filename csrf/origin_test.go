package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckOrigin(t *testing.T) {
	cases := []struct {
		name    string
		allowed string
		origin  string
		referer string
		ok      bool
	}{
		{"request host", "", "https://example.com", "", true},
		{"case insensitive", "", "https://EXAMPLE.com", "", true},
		{"configured host", "app.example.com", "https://app.example.com", "", true},
		{"configured host ignores request host", "app.example.com", "https://example.com", "", false},
		{"port must match", "", "https://example.com:8443", "", false},
		{"null origin", "", "null", "https://example.com/page", false},
		{"origin wins over referer", "", "https://evil.com", "https://example.com/", false},
		{"referer fallback", "", "", "https://example.com/page", true},
		{"relative referer", "", "", "/page", false},
		{"nothing", "", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			r.Host = "example.com"
			if tc.origin != "" {
				r.Header.Set("Origin", tc.origin)
			}
			if tc.referer != "" {
				r.Header.Set("Referer", tc.referer)
			}
			err := checkOrigin(r, tc.allowed)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrOriginRejected)
			}
		})
	}
}
