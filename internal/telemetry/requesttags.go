package telemetry

import "context"

// RequestTags carries per-request attributes that are resolved partway
// through the middleware chain (agent identity is only known once
// internal/auth.Middleware runs, downstream of the logging middleware) but
// still need to land in that request's log line. A pointer is stashed in
// the context up front so later middleware can fill it in without
// replacing the context value the earlier middleware already captured.
type RequestTags struct {
	AgentID string
}

type requestTagsKey struct{}

// ContextWithRequestTags installs an empty RequestTags in ctx and returns
// both the new context and a pointer to it for the caller to read back
// after the handler chain runs.
func ContextWithRequestTags(ctx context.Context) (context.Context, *RequestTags) {
	tags := &RequestTags{}
	return context.WithValue(ctx, requestTagsKey{}, tags), tags
}

// RequestTagsFromContext returns the RequestTags installed by
// ContextWithRequestTags, or nil if none is present (e.g. the
// unauthenticated /health and /api/clients/register routes).
func RequestTagsFromContext(ctx context.Context) *RequestTags {
	tags, _ := ctx.Value(requestTagsKey{}).(*RequestTags)
	return tags
}
