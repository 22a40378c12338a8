package csrf

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts issued tokens and validation outcomes. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	issued      prometheus.Counter
	validations *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg
// (prometheus.DefaultRegisterer when nil). Registering twice is not an error.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "csrf_tokens_issued_total",
			Help: "Number of CSRF token pairs issued",
		}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "csrf_validations_total",
			Help: "CSRF validations by result",
		}, []string{"result"}),
	}

	issued, err := registerCollector(reg, m.issued)
	if err != nil {
		return nil, err
	}
	m.issued = issued.(prometheus.Counter)

	validations, err := registerCollector(reg, m.validations)
	if err != nil {
		return nil, err
	}
	m.validations = validations.(*prometheus.CounterVec)
	return m, nil
}

// registerCollector registers c, returning the already registered collector on
// duplicates so counters keep accumulating in one place.
func registerCollector(reg prometheus.Registerer, c prometheus.Collector) (prometheus.Collector, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector, nil
		}
		return nil, err
	}
	return c, nil
}

func (m *Metrics) observeIssue() {
	if m == nil {
		return
	}
	m.issued.Inc()
}

func (m *Metrics) observeValidation(err error) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(reasonLabel(err)).Inc()
}

// reasonLabel turns an error into a low-cardinality label.
func reasonLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenMismatch):
		return "mismatch"
	case errors.Is(err, ErrTokenInvalid):
		return "invalid"
	case errors.Is(err, ErrCookieMissing), errors.Is(err, ErrSignedTokenMissing):
		return "missing_cookie"
	case errors.Is(err, ErrMissingToken):
		return "missing_token"
	case errors.Is(err, ErrInvalidHeader):
		return "invalid_header"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrOriginRejected):
		return "origin"
	default:
		return "error"
	}
}
