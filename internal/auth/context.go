package auth

import "context"

type ctxKey int

const claimsKey ctxKey = iota

// Claims contains the verified token details the relay cares about.
type Claims struct {
	UserID int64
}

// WithClaims stores verified claims in a context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns claims previously stored by the auth middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}
