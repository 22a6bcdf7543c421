package middleware

import "context"

type callerKey struct{}

// caller is the authenticated identity for one request. Both fields come
// straight from the verified token claims.
type caller struct {
	userID string
	role   string
}

func callerFrom(ctx context.Context) caller {
	if ctx == nil {
		return caller{}
	}
	c, _ := ctx.Value(callerKey{}).(caller)
	return c
}

func withCaller(ctx context.Context, c caller) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerKey{}, c)
}

func UserIDFromContext(ctx context.Context) string { return callerFrom(ctx).userID }

func RoleFromContext(ctx context.Context) string { return callerFrom(ctx).role }

// WithUserID sets the caller id, keeping any role already present.
func WithUserID(ctx context.Context, userID string) context.Context {
	c := callerFrom(ctx)
	c.userID = userID
	return withCaller(ctx, c)
}

// WithRole sets the caller role, keeping any id already present.
func WithRole(ctx context.Context, role string) context.Context {
	c := callerFrom(ctx)
	c.role = role
	return withCaller(ctx, c)
}
