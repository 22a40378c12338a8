// Package csrfgin adapts csrf.Protector to gin.
//
//	p := csrf.MustNew(cfg)
//	r := gin.New()
//	r.GET("/csrf-token", csrfgin.TokenHandler(p))
//	r.POST("/transfer", csrfgin.Middleware(p), transfer)
//
// Rejections abort the chain with {"detail": "<message>"} and the status of
// the error (see csrf.StatusCode).
package csrfgin

import (
	"errors"
	"net/http"

	"github.com/JeanGrijp/go-csrf/csrf"
	"github.com/gin-gonic/gin"
)

// TokenKey is the gin context key holding the plain token set by Inject.
const TokenKey = "csrf_token"

// ErrorResponder writes the response for a failed issuance or validation. It
// must abort the context.
type ErrorResponder func(c *gin.Context, err error)

// Abort is the default ErrorResponder.
func Abort(c *gin.Context, err error) {
	status := csrf.StatusCode(err)
	msg := "internal error"
	var ce *csrf.Error
	switch {
	case errors.As(err, &ce):
		msg = ce.Message
	case errors.Is(err, csrf.ErrOriginRejected):
		msg = "invalid origin"
	case status == http.StatusRequestEntityTooLarge:
		msg = "request body too large"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

// Middleware runs csrf.Protector.Protect in front of the remaining handlers,
// including the origin check and cookie consumption configured on p. The
// protector's ErrorHandler writes rejections.
func Middleware(p *csrf.Protector) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		h := p.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			// BodyLocator may have replaced r.Body
			c.Request = r
			c.Next()
		}))
		h.ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}

// Validate checks the request with p.Validate on every method listed in the
// configuration and reports failures through respond (Abort when nil). The
// cookie is expired on success unless keep is set.
func Validate(p *csrf.Protector, respond ErrorResponder, keep bool, opts ...csrf.CallOption) gin.HandlerFunc {
	if respond == nil {
		respond = Abort
	}
	return func(c *gin.Context) {
		if !p.Config().IsUnsafe(c.Request.Method) {
			c.Next()
			return
		}
		if err := p.Validate(c.Request, opts...); err != nil {
			respond(c, err)
			return
		}
		if !keep {
			_ = p.UnsetCookie(c.Writer, opts...)
		}
		c.Next()
	}
}

// TokenHandler issues a pair, sets the cookie and responds with
// {"csrf_token": "<plain>"}.
func TokenHandler(p *csrf.Protector, opts ...csrf.CallOption) gin.HandlerFunc {
	return func(c *gin.Context) {
		pair, err := p.Issue(opts...)
		if err != nil {
			Abort(c, err)
			return
		}
		_ = p.SetCookie(c.Writer, pair.Signed, opts...)
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, pair)
	}
}

// Inject issues a pair for the request, sets the cookie and exposes the plain
// token under TokenKey and through csrf.TokenFromContext.
func Inject(p *csrf.Protector) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		h := p.Inject(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			if tok, ok := csrf.TokenFromContext(r.Context()); ok {
				c.Set(TokenKey, tok)
			}
			c.Next()
		}))
		h.ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}

// Token returns the plain token stored by Inject.
func Token(c *gin.Context) string {
	return c.GetString(TokenKey)
}
