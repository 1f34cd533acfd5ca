package remote

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
)

// bearerCreds attaches the current delegation token to each call.
// The token is read per call so a login or logout takes effect without redialing.
type bearerCreds struct {
	tokens TokenSource
	secure bool
}

var _ credentials.PerRPCCredentials = bearerCreds{}

// BearerCredentials returns per-RPC credentials backed by tokens.
// secure must match whether the connection uses TLS.
func BearerCredentials(tokens TokenSource, secure bool) credentials.PerRPCCredentials {
	return bearerCreds{tokens: tokens, secure: secure}
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	if b.tokens == nil {
		return nil, nil
	}
	tok := b.tokens.Token()
	if tok == "" {
		return nil, nil
	}
	return map[string]string{"authorization": "Bearer " + tok}, nil
}

func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

// BearerFromContext extracts the bearer token from incoming metadata.
func BearerFromContext(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}

// IdempotencyKeyFromContext returns the idempotency key of an incoming call, if any.
func IdempotencyKeyFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(IdempotencyKeyHeader); len(v) > 0 {
		return v[0]
	}
	return ""
}
