package common

import "context"

type ctxKey string

const sessionKey ctxKey = "auth/session"

// Session carries the authenticated buyer identity extracted from the
// session token. Username doubles as the personal tenant slug.
type Session struct {
	UserID   string
	Username string
}

// WithSession stores the authenticated session on the provided context.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFrom extracts the authenticated session from the context if present.
func SessionFrom(ctx context.Context) (Session, bool) {
	v := ctx.Value(sessionKey)
	if v == nil {
		return Session{}, false
	}
	s, ok := v.(Session)
	return s, ok
}

// UserID extracts the authenticated user identifier from the context if present.
func UserID(ctx context.Context) (string, bool) {
	s, ok := SessionFrom(ctx)
	if !ok || s.UserID == "" {
		return "", false
	}
	return s.UserID, true
}
