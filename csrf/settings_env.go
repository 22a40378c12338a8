package csrf

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEnvPrefix prefixes every variable read by EnvSource.
const DefaultEnvPrefix = "CSRF_"

// envSettings mirrors the option table. Pointers stay nil when the variable is
// unset so absent options keep their defaults.
type envSettings struct {
	SecretKey      *string  `env:"SECRET_KEY"`
	CookieKey      *string  `env:"COOKIE_KEY"`
	CookiePath     *string  `env:"COOKIE_PATH"`
	CookieDomain   *string  `env:"COOKIE_DOMAIN"`
	CookieSecure   *bool    `env:"COOKIE_SECURE"`
	CookieSameSite *string  `env:"COOKIE_SAMESITE"`
	HTTPOnly       *bool    `env:"HTTPONLY"`
	MaxAge         *int     `env:"MAX_AGE"`
	HeaderName     *string  `env:"HEADER_NAME"`
	HeaderType     *string  `env:"HEADER_TYPE"`
	TokenLocation  *string  `env:"TOKEN_LOCATION"`
	TokenKey       *string  `env:"TOKEN_KEY"`
	Methods        []string `env:"METHODS" envSeparator:","`
}

// EnvSource reads settings from environment variables such as
// CSRF_SECRET_KEY or CSRF_COOKIE_SAMESITE. Files listed in DotEnv are loaded
// first with godotenv; variables already present in the environment win.
type EnvSource struct {
	Prefix string   // defaults to DefaultEnvPrefix
	DotEnv []string // optional .env files
}

// FromEnv returns an EnvSource with the default prefix.
func FromEnv(dotenv ...string) EnvSource {
	return EnvSource{Prefix: DefaultEnvPrefix, DotEnv: dotenv}
}

func (s EnvSource) Settings() ([]Setting, error) {
	if len(s.DotEnv) > 0 {
		if err := godotenv.Load(s.DotEnv...); err != nil {
			return nil, fmt.Errorf("load dotenv: %w", err)
		}
	}

	prefix := s.Prefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	var es envSettings
	if err := env.ParseWithOptions(&es, env.Options{Prefix: prefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	var out []Setting
	addString := func(key string, v *string) {
		if v != nil {
			out = append(out, Setting{Key: key, Value: *v})
		}
	}
	addBool := func(key string, v *bool) {
		if v != nil {
			out = append(out, Setting{Key: key, Value: *v})
		}
	}

	addString(keySecretKey, es.SecretKey)
	addString(keyCookieKey, es.CookieKey)
	addString(keyCookiePath, es.CookiePath)
	addString(keyCookieDomain, es.CookieDomain)
	addBool(keyCookieSecure, es.CookieSecure)
	addString(keyCookieSameSite, es.CookieSameSite)
	addBool(keyHTTPOnly, es.HTTPOnly)
	if es.MaxAge != nil {
		out = append(out, Setting{Key: keyMaxAge, Value: *es.MaxAge})
	}
	addString(keyHeaderName, es.HeaderName)
	addString(keyHeaderType, es.HeaderType)
	addString(keyTokenLocation, es.TokenLocation)
	addString(keyTokenKey, es.TokenKey)
	if len(es.Methods) > 0 {
		out = append(out, Setting{Key: keyMethods, Value: es.Methods})
	}
	return out, nil
}
