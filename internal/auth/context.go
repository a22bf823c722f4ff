package auth

import "context"

type authUserContextKey struct{}
type tokenContextKey struct{}

// ContextWithAuthUser attaches the resolved caller view to the context so
// downstream stages do not repeat the lookup.
func ContextWithAuthUser(ctx context.Context, user AuthUser) context.Context {
	return context.WithValue(ctx, authUserContextKey{}, &user)
}

// AuthUserFromContext extracts the resolved caller view from the context.
func AuthUserFromContext(ctx context.Context) (AuthUser, bool) {
	if ctx == nil {
		return AuthUser{}, false
	}
	v, ok := ctx.Value(authUserContextKey{}).(*AuthUser)
	if !ok || v == nil {
		return AuthUser{}, false
	}
	return *v, true
}

// ContextWithToken stores the raw bearer token inside the context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
