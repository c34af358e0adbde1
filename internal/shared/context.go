package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// SessionKey returns the session id for keying per-visitor state, or
// "anonymous" when no session is attached.
func SessionKey(ctx context.Context) string {
	if sess := SessionFromContext(ctx); sess != nil && sess.ID != "" {
		return sess.ID
	}
	return "anonymous"
}
