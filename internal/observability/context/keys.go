package context

import "context"

type contextKey string

const (
	requestIDKey contextKey = "observability_request_id"
	apiIDKey     contextKey = "observability_api_id"
	clientIDKey  contextKey = "observability_client_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WithCredential records the resolved api and client identifiers so downstream
// logs can correlate admission decisions with billing records.
func WithCredential(ctx context.Context, apiID, clientID string) context.Context {
	if ctx == nil {
		return ctx
	}
	if apiID != "" {
		ctx = context.WithValue(ctx, apiIDKey, apiID)
	}
	if clientID != "" {
		ctx = context.WithValue(ctx, clientIDKey, clientID)
	}
	return ctx
}

func CredentialFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	apiID, _ := ctx.Value(apiIDKey).(string)
	clientID, _ := ctx.Value(clientIDKey).(string)
	return apiID, clientID
}
