package grpcserver

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"time"

	"github.com/and161185/worklog/internal/errs"
	"github.com/and161185/worklog/internal/model"
	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Authenticator verifies access tokens.
type Authenticator interface {
	RequireAuthenticated(token string) (model.Caller, error)
}

// Interceptors chains the server's unary interceptors, outermost first.
func Interceptors(log *zap.Logger, auth Authenticator) grpc.ServerOption {
	return grpc.ChainUnaryInterceptor(
		RecoverUnary(log),
		LoggingUnary(log),
		StatusUnary(log),
		AuthUnary(auth),
	)
}

// LoggingUnary logs method, code, duration and peer of every call.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)

		var remote string
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			remote = p.Addr.String()
		}

		// metadata only, payloads may carry credentials
		log.Info("grpc",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", remote),
		)
		return resp, err
	}
}

// RecoverUnary turns handler panics into codes.Internal.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", info.FullMethod),
				)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return next(ctx, req)
	}
}

// AuthUnary resolves the bearer token of every Worklog call except the
// public ones and stores the caller in context. Other services pass through.
func AuthUnary(auth Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, "/"+ServiceName+"/") || publicMethods[info.FullMethod] {
			return next(ctx, req)
		}
		tok, err := bearerTokenFromMD(ctx)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "missing access token")
		}
		caller, err := auth.RequireAuthenticated(tok)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid access token")
		}
		return next(WithCaller(ctx, caller), req)
	}
}

// StatusUnary converts domain errors returned by handlers into gRPC statuses.
// Unclassified errors are logged and reported as a generic internal error.
func StatusUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		resp, err := next(ctx, req)
		if err == nil {
			return resp, nil
		}
		if _, ok := status.FromError(err); ok {
			return nil, err
		}
		st := toStatus(err)
		if st.Code() == codes.Internal {
			log.Error("request failed", zap.String("method", info.FullMethod), zap.Error(err))
		}
		return nil, st.Err()
	}
}

func toStatus(err error) *status.Status {
	var verr *errs.ValidationError
	switch {
	case errors.As(err, &verr):
		return validationStatus(verr)
	case errors.Is(err, errs.ErrUnauthenticated):
		return status.New(codes.Unauthenticated, "unauthenticated")
	case errors.Is(err, errs.ErrForbidden):
		return status.New(codes.PermissionDenied, "access denied")
	case errors.Is(err, errs.ErrVersionConflict):
		return status.New(codes.Aborted, "data changed, please retry")
	case errors.Is(err, errs.ErrNotFound):
		return status.New(codes.NotFound, "not found")
	case errors.Is(err, errs.ErrRateLimited):
		return status.New(codes.ResourceExhausted, "too many attempts, try again later")
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.New(codes.AlreadyExists, "already exists")
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, "canceled")
	default:
		return status.New(codes.Internal, "internal error")
	}
}

func validationStatus(v *errs.ValidationError) *status.Status {
	st := status.New(codes.InvalidArgument, v.Error())
	br := &errdetails.BadRequest{}
	for field, msg := range v.Fields {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{Field: field, Description: msg})
	}
	if withDetails, err := st.WithDetails(br); err == nil {
		return withDetails
	}
	return st
}
