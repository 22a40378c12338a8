package csrf

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Issue mints a new token pair with the configured (or overridden) secret.
func (p *Protector) Issue(opts ...CallOption) (TokenPair, error) {
	c := resolve(p.Config(), opts)
	pair, err := p.codec.Generate(c.secretKey)
	if err != nil {
		p.logger.Error("csrf token generation failed", zap.Error(err))
		return TokenPair{}, err
	}
	p.metrics.observeIssue()
	p.logger.Debug("csrf token issued")
	return pair, nil
}

// SetCookie stores the signed token in the response cookie described by the
// configuration.
func (p *Protector) SetCookie(w http.ResponseWriter, signed string, opts ...CallOption) error {
	if w == nil {
		return ErrNilResponse
	}
	cfg := p.Config()
	c := resolve(cfg, opts)

	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieKey,
		Value:    signed,
		Path:     cfg.CookiePath,
		Domain:   cfg.CookieDomain,
		MaxAge:   int(c.maxAge.Seconds()),
		SameSite: cfg.CookieSameSite.HTTP(),
		Secure:   cfg.CookieSecure,
		HttpOnly: cfg.HTTPOnly,
	})
	return nil
}

// UnsetCookie expires the token cookie so the token cannot be replayed.
func (p *Protector) UnsetCookie(w http.ResponseWriter, opts ...CallOption) error {
	if w == nil {
		return ErrNilResponse
	}
	cfg := p.Config()
	c := resolve(cfg, opts)

	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieKey,
		Value:    "",
		Path:     cfg.CookiePath,
		Domain:   cfg.CookieDomain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		SameSite: cfg.CookieSameSite.HTTP(),
		Secure:   cfg.CookieSecure,
		HttpOnly: cfg.HTTPOnly,
	})
	return nil
}

// Locate returns the submitted plain token using the configured carrier.
func (p *Protector) Locate(r *http.Request) (string, error) {
	return p.state.Load().locator.Locate(r)
}

// Validate checks that the signed token in the request cookie is authentic,
// fresh and matches the plain token submitted in the configured carrier. It
// does not clear the cookie; call UnsetCookie on success for one-shot tokens.
func (p *Protector) Validate(r *http.Request, opts ...CallOption) error {
	err := p.validate(r, opts)
	p.metrics.observeValidation(err)
	if err != nil {
		p.logger.Warn("csrf validation failed",
			zap.String("reason", reasonLabel(err)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
	}
	return err
}

func (p *Protector) validate(r *http.Request, opts []CallOption) error {
	st := p.state.Load()
	c := resolve(st.cfg, opts)
	if c.secretKey == "" {
		return missingSecret()
	}

	cookie, err := r.Cookie(c.cookieKey)
	if err != nil || cookie.Value == "" {
		return newError(ErrMissingToken, ErrCookieMissing, "Missing Cookie: `%s`.", c.cookieKey)
	}

	plain, err := st.locator.Locate(r)
	if err != nil {
		return err
	}
	if plain == "" {
		return newError(ErrMissingToken, ErrTokenMissing, "The CSRF token must be provided.")
	}

	return p.codec.Verify(c.secretKey, cookie.Value, plain, *c.maxAge)
}

// Protect wraps the given next http.Handler and enforces CSRF protection.
//
// Behavior:
//   - Methods outside Config.Methods pass through untouched.
//   - Methods in Config.Methods: optionally validate Origin/Referer (see
//     WithOriginCheck), then run Validate. On success the cookie is expired
//     (unless WithoutConsume) and next is called; a fresh token must be
//     issued before the next state change.
//
// Failures are reported through the ErrorHandler.
func (p *Protector) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !p.Config().IsUnsafe(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		if p.enforceOrigin {
			if err := checkOrigin(r, p.allowedOrigin); err != nil {
				p.metrics.observeValidation(err)
				p.logger.Warn("csrf origin check failed",
					zap.Error(err),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				p.onError(w, r, err)
				return
			}
		}

		if err := p.Validate(r); err != nil {
			p.onError(w, r, err)
			return
		}

		if !p.keepCookie {
			_ = p.UnsetCookie(w)
		}
		next.ServeHTTP(w, r)
	})
}

// TokenHandler returns an HTTP handler that issues a fresh pair, sets the
// cookie and writes {"csrf_token": "<plain>"}. This is useful for SPAs to
// fetch the token and attach it to subsequent requests.
func (p *Protector) TokenHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pair, err := p.Issue()
		if err != nil {
			p.onError(w, r, err)
			return
		}
		_ = p.SetCookie(w, pair.Signed)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(pair)
	})
}

// Inject issues a fresh pair for every request passing through, sets the
// cookie and stores the plain token in the request context so handlers can
// render it (see TokenFromContext). Use it on the routes that serve forms.
func (p *Protector) Inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pair, err := p.Issue()
		if err != nil {
			p.onError(w, r, err)
			return
		}
		_ = p.SetCookie(w, pair.Signed)
		next.ServeHTTP(w, r.WithContext(contextWithToken(r.Context(), pair.Plain)))
	})
}

// ErrorHandler reports a failed issuance or validation to the client.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// DefaultErrorHandler writes {"detail": "<message>"} with the status code of
// the error. Origin rejections answer 403 "invalid origin"; other errors
// outside the CSRF taxonomy are not echoed.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	status := StatusCode(err)
	var ce *Error
	switch {
	case errors.As(err, &ce):
		writeDetail(w, status, ce.Message)
	case errors.Is(err, ErrOriginRejected):
		writeDetail(w, status, "invalid origin")
	case status == http.StatusRequestEntityTooLarge:
		writeDetail(w, status, "request body too large")
	default:
		writeDetail(w, status, "internal error")
	}
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": msg})
}
