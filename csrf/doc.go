// Package csrf provides CSRF protection for Go net/http servers using signed
// double-submit tokens.
//
// How it works
//   - Issue mints a pair: a random plain token and a signed value that binds
//     the plain token to its issue time under the server secret. The signed
//     value goes into a cookie (SetCookie), the plain value goes back to the
//     client in the response body or a template.
//   - On a state-changing request, Validate reads the signed value from the
//     cookie and the plain token from a header, a JSON/form body field, or
//     either (see TokenLocation). It succeeds only when the signature is
//     authentic, the token is younger than MaxAge and both values match.
//   - Tokens are single use under Protect: a successful validation expires the
//     cookie, so the next state change needs a fresh Issue.
//
// No state is kept on the server. The signed format is compatible with
// itsdangerous' URLSafeTimedSerializer.
//
// # Configuration
//
// LoadConfig resolves a Source (Pairs, Map, EnvSource, YAMLSource) into a
// validated Config. Recognized options:
//
//	secret_key       string  HMAC key (required before issuing or validating)
//	cookie_key       string  cookie name, default "csrf-token"
//	cookie_path      string  default "/"
//	cookie_domain    string
//	cookie_secure    bool    default false
//	cookie_samesite  string  strict|lax|none, default lax; none needs cookie_secure
//	httponly         bool    default true
//	max_age          int     seconds, default 3600, at most MaxMaxAge
//	header_name      string  default "X-CSRF-Token"
//	header_type      string  scheme prefix, e.g. "Bearer"
//	token_location   string  header|body|flexible, default header
//	token_key        string  body field; required for body
//	methods          []string default POST, PUT, PATCH, DELETE
//
// Typical usage
//
//	cfg, err := csrf.LoadConfig(csrf.FromEnv())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	p := csrf.MustNew(cfg, csrf.WithLogger(logger))
//
//	mux.Handle("GET /csrf-token", p.TokenHandler())
//	mux.Handle("POST /transfer", p.Protect(transferHandler))
//
// When building a Config in code, start from DefaultConfig. A bare literal
// leaves HTTPOnly false because Go cannot tell an unset bool from false:
//
//	cfg := csrf.DefaultConfig()
//	cfg.SecretKey = os.Getenv("APP_SECRET")
//	p := csrf.MustNew(cfg)
//
// Errors carry a kind (ErrConfiguration, ErrInvalidHeader, ErrMissingToken,
// ErrTokenValidation) and a reason (ErrTokenExpired, ErrCookieMissing, ...),
// both usable with errors.Is, and map to HTTP statuses through StatusCode.
package csrf
