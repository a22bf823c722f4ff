package auth

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()

	if _, ok := AuthUserFromContext(ctx); ok {
		t.Fatal("found user in empty context")
	}
	if _, ok := TokenFromContext(ctx); ok {
		t.Fatal("found token in empty context")
	}

	view := AuthUser{ID: "usr_01", Username: "amira", Roles: []string{"operator"}}
	ctx = ContextWithAuthUser(ctx, view)
	ctx = ContextWithToken(ctx, "raw-token")

	got, ok := AuthUserFromContext(ctx)
	if !ok || got.ID != "usr_01" || got.Username != "amira" {
		t.Fatalf("unexpected view: %+v, ok=%v", got, ok)
	}
	token, ok := TokenFromContext(ctx)
	if !ok || token != "raw-token" {
		t.Fatalf("unexpected token: %q, ok=%v", token, ok)
	}

	// empty token is not attached
	if _, ok := TokenFromContext(ContextWithToken(context.Background(), "")); ok {
		t.Fatal("empty token round-tripped")
	}
}
