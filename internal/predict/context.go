package predict

import "context"

type requestIDKey struct{}

// WithRequestID attaches a request id for PredictRequest to reuse
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id attached with WithRequestID, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
