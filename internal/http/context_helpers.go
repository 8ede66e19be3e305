package httpx

import (
	"context"

	domainauth "github.com/target/mmk-auth-bridge/internal/domain/auth"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
type sessionKey struct{}

// SetSessionInContext returns a child context that carries the given session.
// If session is nil, ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, session *domainauth.SessionRecord) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetSessionFromContext returns the session loaded for this request, if any.
func GetSessionFromContext(ctx context.Context) (*domainauth.SessionRecord, bool) {
	if s, ok := ctx.Value(sessionKey{}).(*domainauth.SessionRecord); ok && s != nil {
		return s, true
	}
	return nil, false
}
