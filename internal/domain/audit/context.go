package audit

import "context"

type requestMetaKey struct{}

// RequestMeta identifies the HTTP request that caused a change.
type RequestMeta struct {
	RequestID string
	IP        string
}

// WithRequestMeta attaches m to ctx so later audit records can pick it up.
func WithRequestMeta(ctx context.Context, m RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, m)
}

func RequestMetaFrom(ctx context.Context) RequestMeta {
	m, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return m
}
