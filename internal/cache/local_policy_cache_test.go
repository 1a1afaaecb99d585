package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/taskgate/internal/domain"
)

func TestLocalPolicyCache(t *testing.T) {
	ctx := context.Background()
	c := NewLocalPolicyCache(2, time.Minute)

	_, ok, err := c.Get(ctx, "project-1")
	require.NoError(t, err)
	assert.False(t, ok)

	policy := domain.DefaultPolicy("project-1")
	policy.Enabled = true
	require.NoError(t, c.Set(ctx, policy))

	got, ok, err := c.Get(ctx, "project-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Enabled)

	got.Enabled = false
	again, _, err := c.Get(ctx, "project-1")
	require.NoError(t, err)
	assert.True(t, again.Enabled, "callers get independent copies")

	require.NoError(t, c.Invalidate(ctx, "project-1"))
	_, ok, err = c.Get(ctx, "project-1")
	require.NoError(t, err)
	assert.False(t, ok)

}

func TestLocalPolicyCache_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	c := NewLocalPolicyCache(2, 50*time.Millisecond)

	require.NoError(t, c.Set(ctx, domain.DefaultPolicy("project-1")))
	_, ok, err := c.Get(ctx, "project-1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok, err := c.Get(ctx, "project-1")
		return err == nil && !ok
	}, 2*time.Second, 10*time.Millisecond, "entry expires after ttl")
}

func TestLocalPolicyCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewLocalPolicyCache(2, time.Hour)

	for _, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, c.Set(ctx, domain.DefaultPolicy(id)))
	}

	_, ok, err := c.Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = c.Get(ctx, "p3")
	require.NoError(t, err)
	assert.True(t, ok)
}
