// cmd/api/context.go
package main

import (
	"context"
	"net/http"

	"github.com/aoideee/bookreviews/internal/auth"
)

type contextKey string

const (
	userContextKey          = contextKey("user")
	tokenRejectedContextKey = contextKey("tokenRejected")
)

// contextSetUser returns a copy of r carrying the authenticated user's claims.
func (app *applicationDependencies) contextSetUser(r *http.Request, user *auth.Claims) *http.Request {
	ctx := context.WithValue(r.Context(), userContextKey, user)
	return r.WithContext(ctx)
}

// contextGetUser returns the authenticated user, or nil for an anonymous request.
func (app *applicationDependencies) contextGetUser(r *http.Request) *auth.Claims {
	user, ok := r.Context().Value(userContextKey).(*auth.Claims)
	if !ok {
		return nil
	}
	return user
}

// contextSetTokenRejected returns a copy of r recording that it carried an
// Authorization header that did not verify.
func (app *applicationDependencies) contextSetTokenRejected(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), tokenRejectedContextKey, true)
	return r.WithContext(ctx)
}

func (app *applicationDependencies) contextTokenRejected(r *http.Request) bool {
	rejected, _ := r.Context().Value(tokenRejectedContextKey).(bool)
	return rejected
}
