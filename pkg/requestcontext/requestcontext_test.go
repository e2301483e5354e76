package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "trustbridge/pkg/domain"
)

func TestAccessorsOnEmptyContext(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, RequestID(ctx))
	assert.True(t, UserID(ctx).IsNil())
	assert.Empty(t, Role(ctx))
	assert.False(t, IsInternalCaller(ctx))
	assert.Empty(t, ClientIP(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}

func TestAccessorsRoundTrip(t *testing.T) {
	userID := id.NewUserID()
	pinned := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithUserID(ctx, userID)
	ctx = WithRole(ctx, "citizen")
	ctx = WithInternalCaller(ctx)
	ctx = WithClientMetadata(ctx, "10.1.2.3", "curl/8.0")
	ctx = WithTime(ctx, pinned)

	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, userID, UserID(ctx))
	assert.Equal(t, "citizen", Role(ctx))
	assert.True(t, IsInternalCaller(ctx))
	assert.Equal(t, "10.1.2.3", ClientIP(ctx))
	assert.Equal(t, "curl/8.0", UserAgent(ctx))
	assert.Equal(t, pinned, Now(ctx))
}
