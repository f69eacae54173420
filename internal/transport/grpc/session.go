package grpc

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// SessionMetadataKey carries the caller's session id. Results are only
// remembered for export when a call names a session.
const SessionMetadataKey = "x-ioclens-session"

const maxSessionIDLen = 128

// WithSession attaches a session id to an outgoing call.
func WithSession(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, SessionMetadataKey, id)
}

// SessionFromContext returns the session id of an incoming call, or "".
func SessionFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get(SessionMetadataKey)
	if len(vals) == 0 || len(vals[0]) > maxSessionIDLen {
		return ""
	}
	return vals[0]
}
