package grpcserver

import (
	"context"
	"errors"
	"strings"

	"github.com/and161185/worklog/internal/model"
	"google.golang.org/grpc/metadata"
)

type ctxKey string

const callerKey ctxKey = "wl.caller"

// WithCaller stores the authenticated caller in context.
func WithCaller(ctx context.Context, c model.Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFromCtx fetches the caller stored by the auth interceptor.
func CallerFromCtx(ctx context.Context) (model.Caller, bool) {
	c, ok := ctx.Value(callerKey).(model.Caller)
	return c, ok
}

// bearerTokenFromMD extracts the token of an "authorization: Bearer <JWT>" header.
func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			if t := strings.TrimSpace(v[7:]); t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}
