package csrf

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Protector issues and validates signed double-submit tokens. Build one per
// application with New and share it; it is safe for concurrent use.
type Protector struct {
	state atomic.Pointer[state]

	codec         *Codec
	customLocator Locator
	logger        *zap.Logger
	metrics       *Metrics
	onError       ErrorHandler

	// Extra security
	enforceOrigin bool
	allowedOrigin string // if empty, uses r.Host

	keepCookie bool
}

// state is swapped as a whole so readers never see a half-updated config.
type state struct {
	cfg     Config
	locator Locator
}

type Option func(*Protector)

// WithLogger sets the logger used for issuance and rejection events.
func WithLogger(l *zap.Logger) Option {
	return func(p *Protector) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics records issued tokens and validation outcomes.
func WithMetrics(m *Metrics) Option {
	return func(p *Protector) { p.metrics = m }
}

// WithCodec replaces the default codec, e.g. to change the salt.
func WithCodec(c *Codec) Option {
	return func(p *Protector) {
		if c != nil {
			p.codec = c
		}
	}
}

// WithLocator overrides the locator derived from Config.TokenLocation.
func WithLocator(l Locator) Option {
	return func(p *Protector) { p.customLocator = l }
}

// WithErrorHandler sets how Protect and TokenHandler report failures.
func WithErrorHandler(h ErrorHandler) Option {
	return func(p *Protector) {
		if h != nil {
			p.onError = h
		}
	}
}

// WithOriginCheck makes Protect require a same-site Origin or Referer before
// looking at tokens. An empty host means the request Host.
func WithOriginCheck(allowedHost string) Option {
	return func(p *Protector) {
		p.enforceOrigin = true
		p.allowedOrigin = allowedHost
	}
}

// WithoutConsume keeps the cookie after a successful validation in Protect,
// allowing the same token to be used until it expires.
func WithoutConsume() Option {
	return func(p *Protector) { p.keepCookie = true }
}

// New validates cfg and returns a Protector. Zero fields take their defaults
// except the booleans: pass DefaultConfig() with changes rather than a bare
// literal to keep HTTPOnly set.
func New(cfg Config, opts ...Option) (*Protector, error) {
	p := &Protector{
		codec:   NewCodec(),
		logger:  zap.NewNop(),
		onError: DefaultErrorHandler,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.Reload(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// MustNew is like New but panics on an invalid configuration.
func MustNew(cfg Config, opts ...Option) *Protector {
	p, err := New(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Reload replaces the configuration. In-flight requests keep the
// configuration they started with.
func (p *Protector) Reload(cfg Config) error {
	cfg, err := cfg.Validate()
	if err != nil {
		return err
	}
	loc := p.customLocator
	if loc == nil {
		loc = NewLocator(cfg)
	}
	p.state.Store(&state{cfg: cfg, locator: loc})
	return nil
}

// Config returns the current configuration.
func (p *Protector) Config() Config {
	return p.state.Load().cfg
}

// CallOption overrides configuration for a single Issue, SetCookie,
// UnsetCookie or Validate call.
type CallOption func(*call)

type call struct {
	cookieKey string
	secretKey string
	maxAge    *time.Duration
}

// UseCookieKey overrides Config.CookieKey.
func UseCookieKey(name string) CallOption {
	return func(c *call) { c.cookieKey = name }
}

// UseSecretKey overrides Config.SecretKey.
func UseSecretKey(secret string) CallOption {
	return func(c *call) { c.secretKey = secret }
}

// UseMaxAge overrides Config.MaxAge. Zero is honored: only tokens signed in
// the current second pass.
func UseMaxAge(d time.Duration) CallOption {
	return func(c *call) { c.maxAge = &d }
}

func resolve(cfg Config, opts []CallOption) call {
	c := call{}
	for _, opt := range opts {
		opt(&c)
	}
	if c.cookieKey == "" {
		c.cookieKey = cfg.CookieKey
	}
	if c.secretKey == "" {
		c.secretKey = cfg.SecretKey
	}
	if c.maxAge == nil {
		d := time.Duration(cfg.MaxAge) * time.Second
		c.maxAge = &d
	}
	return c
}
