package viewcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltio/gridbase/internal/viewcache"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "/orgs/org-1/dashboard/projects", viewcache.ProjectListKey("org-1"))
	assert.Equal(t, "/dashboard/projects/p-1", viewcache.ProjectDetailKey("p-1"))
}

func TestMemory_PutGetInvalidate(t *testing.T) {
	c := viewcache.NewMemory()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "/dashboard/projects/p-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "/dashboard/projects/p-1", []byte("rendered"), time.Minute))

	got, ok, err := c.Get(ctx, "/dashboard/projects/p-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("rendered"), got)

	require.NoError(t, c.Invalidate(ctx, "/dashboard/projects/p-1"))
	_, ok, err = c.Get(ctx, "/dashboard/projects/p-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_TTLExpiry(t *testing.T) {
	c := viewcache.NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_PutGetInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := viewcache.NewRedis(ctx, mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Put(ctx, "/dashboard/projects/p-1", []byte("rendered"), time.Minute))

	got, ok, err := c.Get(ctx, "/dashboard/projects/p-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("rendered"), got)

	require.NoError(t, c.Invalidate(ctx, "/dashboard/projects/p-1", "/orgs/org-1/dashboard/projects"))
	_, ok, err = c.Get(ctx, "/dashboard/projects/p-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_MissIsNotError(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := viewcache.NewRedis(ctx, mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, ok, err := c.Get(ctx, "/never/stored")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_TTLExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := viewcache.NewRedis(ctx, mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Put(ctx, "k", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
