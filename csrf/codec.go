package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DefaultSalt namespaces the signatures of this package. Use
// WithSalt("fastapi-csrf-token") to share cookies with fastapi-csrf-protect.
const DefaultSalt = "go-csrf-token"

const randomBytes = 64

// TokenPair is the result of one issuance. Plain goes back to the client in
// the response body, Signed goes into the cookie.
type TokenPair struct {
	Plain  string `json:"csrf_token"`
	Signed string `json:"-"`
}

// Codec mints and verifies signed tokens. It holds no secret and is safe for
// concurrent use.
type Codec struct {
	salt string
	now  func() time.Time
}

type CodecOption func(*Codec)

// WithSalt sets the namespace string mixed into the signing key.
func WithSalt(salt string) CodecOption {
	return func(c *Codec) {
		if salt != "" {
			c.salt = salt
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{salt: DefaultSalt, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate returns a fresh pair signed with secret.
func (c *Codec) Generate(secret string) (TokenPair, error) {
	if secret == "" {
		return TokenPair{}, missingSecret()
	}
	plain, err := newPlainToken()
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Plain: plain, Signed: c.Sign(secret, plain)}, nil
}

// Sign binds plain to the current time under secret.
func (c *Codec) Sign(secret, plain string) string {
	return newSigner(secret, c.salt).dump(plain, c.now())
}

// Decode checks the signature and the age of signed and returns the plain
// token it carries with its issue time.
func (c *Codec) Decode(secret, signed string, maxAge time.Duration) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, missingSecret()
	}
	if signed == "" {
		return "", time.Time{}, newError(ErrMissingToken, ErrSignedTokenMissing, "The signed CSRF token is missing.")
	}

	plain, issuedAt, ok := newSigner(secret, c.salt).load(signed)
	if !ok {
		return "", time.Time{}, newError(ErrTokenValidation, ErrTokenInvalid, "The CSRF token is invalid.")
	}

	// whole seconds, like the timestamp itself
	age := c.now().Unix() - issuedAt.Unix()
	if age < 0 || time.Duration(age)*time.Second > maxAge {
		return "", time.Time{}, newError(ErrTokenValidation, ErrTokenExpired, "The CSRF token has expired.")
	}
	return plain, issuedAt, nil
}

// Verify succeeds when signed is authentic, not older than maxAge and carries
// plain.
func (c *Codec) Verify(secret, signed, plain string, maxAge time.Duration) error {
	if plain == "" {
		return newError(ErrMissingToken, ErrTokenMissing, "The CSRF token must be provided.")
	}
	recovered, _, err := c.Decode(secret, signed, maxAge)
	if err != nil {
		return err
	}
	if !equalTokens(recovered, plain) {
		return newError(ErrTokenValidation, ErrTokenMismatch, "The CSRF signatures submitted do not match.")
	}
	return nil
}

// equalTokens compares digests so the comparison time does not depend on the
// length of the submitted value.
func equalTokens(a, b string) bool {
	da := sha256.Sum256([]byte(a))
	db := sha256.Sum256([]byte(b))
	return hmac.Equal(da[:], db[:])
}

func newPlainToken() (string, error) {
	b := make([]byte, randomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("csrf: read random: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func missingSecret() *Error {
	return newError(ErrConfiguration, ErrSecretKeyMissing, "A secret key is required to use CSRF protection.")
}
