package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// ContextKey is the key type for context values set by the API layer.
type ContextKey string

// Context keys for various values
const (
	// TenantIDContextKey is the context key for the resolved tenant ID
	TenantIDContextKey ContextKey = "tenantID"

	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of bytes used to generate the trace ID
	TraceIDLength = 16 // 32 hex characters
)

// SetTraceID adds a trace ID to the context.
// This is useful for correlating logs and error responses.
func SetTraceID(ctx context.Context) context.Context {
	traceID := generateTraceID()
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// generateTraceID creates a random trace ID for request tracking.
// Returns a 32-character hex string (16 bytes). Falls back to a
// timestamp-based ID if the random source fails.
func generateTraceID() string {
	buf := make([]byte, TraceIDLength)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
