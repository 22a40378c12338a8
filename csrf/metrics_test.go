package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCountIssuesAndResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	p := newProtector(t, Config{SecretKey: testSecret}, WithMetrics(m))
	h := appHandler(p)
	plain, cookie := fetchToken(t, h, DefaultCookieKey)

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(cookie)
	req.Header.Set(DefaultHeaderName, plain)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(cookie)
	req.Header.Set(DefaultHeaderName, "wrong")
	h.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.Header.Set(DefaultHeaderName, plain)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.issued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("missing_cookie")))
}

func TestNewMetricsTwiceSharesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewMetrics(reg)
	require.NoError(t, err)
	b, err := NewMetrics(reg)
	require.NoError(t, err)

	b.observeIssue()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.issued))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeIssue()
		m.observeValidation(nil)
	})
}

func TestReasonLabel(t *testing.T) {
	cases := map[string]error{
		"ok":             nil,
		"expired":        newError(ErrTokenValidation, ErrTokenExpired, "x"),
		"invalid":        newError(ErrTokenValidation, ErrTokenInvalid, "x"),
		"missing_cookie": newError(ErrMissingToken, ErrCookieMissing, "x"),
		"missing_token":  newError(ErrMissingToken, ErrTokenMissing, "x"),
		"invalid_header": newError(ErrInvalidHeader, ErrHeaderMalformed, "x"),
		"configuration":  configError("x"),
		"origin":         ErrOriginRejected,
		"error":          &http.MaxBytesError{},
	}
	for want, err := range cases {
		assert.Equal(t, want, reasonLabel(err))
	}
}
