package shared

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskmanager/internal/service/auth"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx), "Expected empty trace ID in original context")

	ctxWithTrace := SetTraceID(ctx)
	traceID := GetTraceID(ctxWithTrace)
	_, err := uuid.Parse(traceID)
	assert.NoError(t, err, "trace ID should be a UUID")

	assert.NotEqual(t, traceID, GetTraceID(SetTraceID(ctx)), "each call generates a new ID")
	assert.Empty(t, GetTraceID(ctx), "Expected original context to remain unchanged")
}

func TestWithTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "req-42")
	assert.Equal(t, "req-42", GetTraceID(ctx))
}

func TestGetTraceIDWithInvalidContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, 123) // Not a string
	assert.Empty(t, GetTraceID(ctx), "Expected empty trace ID when context has invalid type")
}

func TestClaims(t *testing.T) {
	_, ok := GetClaims(context.Background())
	assert.False(t, ok)

	_, ok = GetClaims(WithClaims(context.Background(), nil))
	assert.False(t, ok, "nil claims are not claims")

	want := &auth.Claims{UserID: 3, Username: "ada"}
	got, ok := GetClaims(WithClaims(context.Background(), want))
	require.True(t, ok)
	assert.Same(t, want, got)
}
