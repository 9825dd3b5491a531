package auth

import "context"

// Caller is the identity behind a request: either anonymous or a verified
// user. It is resolved once at the HTTP boundary.
type Caller struct {
	userID int64
}

// Anonymous returns the caller for requests without a token.
func Anonymous() Caller {
	return Caller{}
}

// Authenticated returns the caller for a verified user.
func Authenticated(userID int64) Caller {
	return Caller{userID: userID}
}

// UserID returns the caller's user ID and whether the caller is authenticated.
func (c Caller) UserID() (int64, bool) {
	return c.userID, c.userID > 0
}

// IsAuthenticated reports whether the caller carries a verified user ID.
func (c Caller) IsAuthenticated() bool {
	return c.userID > 0
}

type contextKey string

const callerKey = contextKey("caller")

// WithCaller stores the caller in ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFromContext returns the caller stored in ctx, or Anonymous.
func CallerFromContext(ctx context.Context) Caller {
	if c, ok := ctx.Value(callerKey).(Caller); ok {
		return c
	}
	return Anonymous()
}
