package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	ctx := WithRequestID(context.Background(), " req-1 ")
	ctx = WithActor(ctx, "admin", "7")
	ctx = WithClient(ctx, "10.0.0.1", "curl")

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	actorType, actorID := ActorFromContext(ctx)
	assert.Equal(t, "admin", actorType)
	assert.Equal(t, "7", actorID)
	assert.Equal(t, "10.0.0.1", IPAddressFromContext(ctx))
	assert.Equal(t, "curl", UserAgentFromContext(ctx))
}

func TestEmptyValuesAreIgnored(t *testing.T) {
	ctx := WithActor(context.Background(), "", "7")
	actorType, actorID := ActorFromContext(ctx)
	assert.Empty(t, actorType)
	assert.Empty(t, actorID)
	assert.Empty(t, RequestIDFromContext(nil))
}
