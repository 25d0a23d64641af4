package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "vendemos/pkg/domain"
)

func TestAccessors(t *testing.T) {
	ctx := context.Background()
	assert.True(t, UserID(ctx).IsNil())
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, ClientIP(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)

	actor := id.UserID(uuid.New())
	pinned := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	ctx = WithUserID(ctx, actor)
	ctx = WithRequestID(ctx, "req-7")
	ctx = WithClientMetadata(ctx, "198.51.100.4", "curl/8.5")
	ctx = WithTime(ctx, pinned)

	assert.Equal(t, actor, UserID(ctx))
	assert.Equal(t, "req-7", RequestID(ctx))
	assert.Equal(t, "198.51.100.4", ClientIP(ctx))
	assert.Equal(t, "curl/8.5", UserAgent(ctx))
	assert.Equal(t, pinned, Now(ctx))
}
