package pos

import "context"

type contextKey string

const (
	contextKeySession contextKey = "session"
	contextKeyToken   contextKey = "token"
)

func sessionFromContext(ctx context.Context) *Session {
	if session, ok := ctx.Value(contextKeySession).(*Session); ok {
		return session
	}
	return nil
}

func tokenFromContext(ctx context.Context) string {
	if session := sessionFromContext(ctx); session != nil {
		return session.Token
	}
	if token, ok := ctx.Value(contextKeyToken).(string); ok {
		return token
	}
	return ""
}

// WithToken returns a context carrying a bearer token for requests issued
// outside a terminal session (warmup, polling).
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKeyToken, token)
}
