package csrf

import "context"

type plainTokenKey struct{}

// contextWithToken attaches the plain token minted by Inject for this request.
func contextWithToken(ctx context.Context, plain string) context.Context {
	return context.WithValue(ctx, plainTokenKey{}, plain)
}

// TokenFromContext returns the plain token stored by Inject, so templates can
// embed it in a hidden field or meta tag. Only the plain half is kept; the
// signed half lives in the cookie.
func TokenFromContext(ctx context.Context) (string, bool) {
	plain, ok := ctx.Value(plainTokenKey{}).(string)
	return plain, ok && plain != ""
}
