package auth

import (
	"context"
)

type ctxKey string

const userKey ctxKey = "userClaims"

// Claims is the authenticated identity attached to every request. The
// role comes straight from the verified token; there is no server-side
// session to consult.
type Claims struct {
	Username string
	Role     string
}

func (c Claims) IsAdmin() bool {
	return c.Role == "ADMIN"
}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, userKey, c)
}

func FromContext(ctx context.Context) Claims {
	if v, ok := ctx.Value(userKey).(Claims); ok {
		return v
	}
	return Claims{}
}

func Username(ctx context.Context) string {
	return FromContext(ctx).Username
}
