package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))

	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
}

func TestNowPrefersPinnedTime(t *testing.T) {
	pinned := time.Date(1985, time.October, 26, 1, 21, 0, 0, time.UTC)

	assert.Equal(t, pinned, Now(WithTime(context.Background(), pinned)))
	assert.WithinDuration(t, time.Now(), Now(context.Background()), time.Second)
}

func TestLogAttrs(t *testing.T) {
	assert.Equal(t, []any{"primary_id", 1}, LogAttrs(context.Background(), "primary_id", 1))

	ctx := WithRequestID(context.Background(), "req-9")
	assert.Equal(t, []any{"request_id", "req-9", "primary_id", 1}, LogAttrs(ctx, "primary_id", 1))
}
