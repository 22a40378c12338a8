package csrf

import (
	"fmt"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"
)

// SameSite is the cookie SameSite policy as written in configuration.
type SameSite string

const (
	SameSiteStrict SameSite = "strict"
	SameSiteLax    SameSite = "lax"
	SameSiteNone   SameSite = "none"
)

// HTTP converts the policy to its net/http counterpart.
func (s SameSite) HTTP() http.SameSite {
	switch s {
	case SameSiteStrict:
		return http.SameSiteStrictMode
	case SameSiteNone:
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// TokenLocation selects the carrier of the submitted plain token.
type TokenLocation string

const (
	LocationHeader TokenLocation = "header"
	LocationBody   TokenLocation = "body"
	// LocationFlexible probes the header first and falls back to the body.
	LocationFlexible TokenLocation = "flexible"
)

// Defaults.
const (
	DefaultCookieKey  = "csrf-token"
	DefaultCookiePath = "/"
	DefaultHeaderName = "X-CSRF-Token"
	DefaultTokenKey   = "csrf-token"
	DefaultMaxAge     = 3600
)

// MaxMaxAge is the largest max_age, in seconds, that still fits a
// time.Duration.
const MaxMaxAge int64 = math.MaxInt64 / int64(time.Second)

var (
	defaultMethods = []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}
	allowedMethods = []string{
		http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}
)

// Config is the effective configuration. Treat it as immutable once handed
// to a Protector.
type Config struct {
	SecretKey string

	// Cookie carrying the signed token
	CookieKey      string
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite SameSite
	HTTPOnly       bool // zero value is false; start from DefaultConfig to get true
	MaxAge         int  // in seconds, at most MaxMaxAge

	// Submitted token transport
	HeaderName    string // e.g.: "X-CSRF-Token"
	HeaderType    string // e.g.: "Bearer"; empty means a bare token
	TokenLocation TokenLocation
	TokenKey      string // body field name

	// Advisory set of state-changing methods, upper case
	Methods []string
}

// DefaultConfig returns the configuration used when no option is set. It has
// no secret key.
func DefaultConfig() Config {
	return Config{
		CookieKey:      DefaultCookieKey,
		CookiePath:     DefaultCookiePath,
		CookieSameSite: SameSiteLax,
		HTTPOnly:       true,
		MaxAge:         DefaultMaxAge,
		HeaderName:     DefaultHeaderName,
		TokenLocation:  LocationHeader,
		Methods:        slices.Clone(defaultMethods),
	}
}

// Validate fills zero fields with defaults and checks the semantic rules:
// known methods, SameSite values, "none" requiring Secure, and the body
// location requiring a token key. HTTPOnly and CookieSecure are taken as is,
// so a literal Config{} yields a cookie without HttpOnly; build on
// DefaultConfig to keep the secure defaults.
func (c Config) Validate() (Config, error) {
	if c.CookieKey == "" {
		c.CookieKey = DefaultCookieKey
	}
	if c.CookiePath == "" {
		c.CookiePath = DefaultCookiePath
	}
	if c.HeaderName == "" {
		c.HeaderName = DefaultHeaderName
	}
	if c.MaxAge < 0 {
		return c, configError(`The "max_age" must not be negative.`)
	}
	if int64(c.MaxAge) > MaxMaxAge {
		return c, configError(`The "max_age" must not exceed %d seconds.`, MaxMaxAge)
	}
	if c.MaxAge == 0 {
		c.MaxAge = DefaultMaxAge
	}

	methods, err := normalizeMethods(c.Methods)
	if err != nil {
		return c, err
	}
	c.Methods = methods

	if c.CookieSameSite == "" {
		c.CookieSameSite = SameSiteLax
	}
	switch c.CookieSameSite {
	case SameSiteStrict, SameSiteLax, SameSiteNone:
	default:
		return c, configError(`The "cookie_samesite" must be between "strict", "lax", or "none".`)
	}
	if c.CookieSameSite == SameSiteNone && !c.CookieSecure {
		return c, configError(`The "cookie_secure" must be True if "cookie_samesite" set to "none".`)
	}

	if c.TokenLocation == "" {
		c.TokenLocation = LocationHeader
	}
	switch c.TokenLocation {
	case LocationHeader:
	case LocationBody:
		if c.TokenKey == "" {
			return c, configError(`The "token_key" must be present when "token_location" is "body"`)
		}
	case LocationFlexible:
		if c.TokenKey == "" {
			c.TokenKey = DefaultTokenKey
		}
	default:
		return c, configError(`The "token_location" must be either "body" or "header".`)
	}
	return c, nil
}

// IsUnsafe reports whether method belongs to the configured method set.
func (c Config) IsUnsafe(method string) bool {
	return slices.Contains(c.Methods, strings.ToUpper(method))
}

func normalizeMethods(in []string) ([]string, error) {
	if len(in) == 0 {
		return slices.Clone(defaultMethods), nil
	}
	out := make([]string, 0, len(in))
	for _, m := range in {
		up := strings.ToUpper(m)
		if !slices.Contains(allowedMethods, up) {
			return nil, configError(`The "methods" entry %q is not one of %s.`, m, strings.Join(allowedMethods, ", "))
		}
		if !slices.Contains(out, up) {
			out = append(out, up)
		}
	}
	slices.Sort(out)
	return out, nil
}

// option keys
const (
	keySecretKey      = "secret_key"
	keyCookieKey      = "cookie_key"
	keyCookiePath     = "cookie_path"
	keyCookieDomain   = "cookie_domain"
	keyCookieSecure   = "cookie_secure"
	keyCookieSameSite = "cookie_samesite"
	keyHTTPOnly       = "httponly"
	keyMaxAge         = "max_age"
	keyHeaderName     = "header_name"
	keyHeaderType     = "header_type"
	keyTokenLocation  = "token_location"
	keyTokenKey       = "token_key"
	keyMethods        = "methods"
)

// LoadConfig resolves settings from src into a validated Config. Keys are
// matched case-insensitively against the closed set of known options and each
// value must have the option's exact type. A nil value is the same as an
// absent key. The secret key may be absent here; issuing or validating a
// token without one fails later.
func LoadConfig(src Source) (Config, error) {
	if src == nil {
		return Config{}, configError("csrf: settings source is nil")
	}
	settings, err := src.Settings()
	if err != nil {
		return Config{}, &Error{
			Message: fmt.Sprintf("csrf: read settings: %v", err),
			kind:    ErrConfiguration,
			reason:  ErrInvalidOption,
			cause:   err,
		}
	}

	cfg := DefaultConfig()
	seen := make(map[string]bool, len(settings))
	for _, s := range settings {
		key := strings.ToLower(strings.TrimSpace(s.Key))
		if s.Value == nil {
			continue
		}
		if seen[key] {
			return Config{}, configError("The option %q is set more than once.", key)
		}
		seen[key] = true

		if err := cfg.apply(key, s.Value); err != nil {
			return Config{}, err
		}
	}

	return cfg.Validate()
}

func (c *Config) apply(key string, v any) error {
	var err error
	switch key {
	case keySecretKey:
		c.SecretKey, err = asString(key, v)
	case keyCookieKey:
		c.CookieKey, err = asString(key, v)
	case keyCookiePath:
		c.CookiePath, err = asString(key, v)
	case keyCookieDomain:
		c.CookieDomain, err = asString(key, v)
	case keyCookieSecure:
		c.CookieSecure, err = asBool(key, v)
	case keyCookieSameSite:
		var s string
		s, err = asString(key, v)
		if err == nil && s == "" {
			err = configError(`The "cookie_samesite" must be between "strict", "lax", or "none".`)
		}
		c.CookieSameSite = SameSite(s)
	case keyHTTPOnly:
		c.HTTPOnly, err = asBool(key, v)
	case keyMaxAge:
		c.MaxAge, err = asInt(key, v)
	case keyHeaderName:
		c.HeaderName, err = asString(key, v)
	case keyHeaderType:
		c.HeaderType, err = asString(key, v)
	case keyTokenLocation:
		var s string
		s, err = asString(key, v)
		if err == nil && s == "" {
			err = configError(`The "token_location" must be either "body" or "header".`)
		}
		c.TokenLocation = TokenLocation(s)
	case keyTokenKey:
		c.TokenKey, err = asString(key, v)
	case keyMethods:
		c.Methods, err = asStringSet(key, v)
	default:
		return configError("Unknown option %q.", key)
	}
	return err
}

func asString(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", configError("The %q option must be a string, got %T.", key, v)
	}
	return s, nil
}

func asBool(key string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, configError("The %q option must be a boolean, got %T.", key, v)
	}
	return b, nil
}

func asInt(key string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	default:
		return 0, configError("The %q option must be an integer, got %T.", key, v)
	}
}

func asStringSet(key string, v any) ([]string, error) {
	switch s := v.(type) {
	case []string:
		return slices.Clone(s), nil
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			str, ok := e.(string)
			if !ok {
				return nil, configError("The %q option must be a set of strings, got element %T.", key, e)
			}
			out = append(out, str)
		}
		return out, nil
	case map[string]struct{}:
		out := make([]string, 0, len(s))
		for m := range s {
			out = append(out, m)
		}
		return out, nil
	case map[string]bool:
		out := make([]string, 0, len(s))
		for m, on := range s {
			if on {
				out = append(out, m)
			}
		}
		return out, nil
	default:
		return nil, configError("The %q option must be a set of strings, got %T.", key, v)
	}
}
