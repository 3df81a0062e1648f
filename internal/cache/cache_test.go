package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/destinasi/internal/cache"
	"github.com/neexbeast/destinasi/internal/destination"
)

func newTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return cache.NewCache(client, time.Hour), mr
}

func sampleCatalog() []destination.Destination {
	return []destination.Destination{
		{ID: "bromo-1", Name: "Bromo", Location: "Jawa Timur", Category: destination.CategoryMountain, Price: 54000, Rating: 4.8},
		{ID: "toba-2", Name: "Danau Toba", Location: "Sumatera Utara", Category: destination.CategoryNationalPark, Price: 20000, Rating: 4.6},
	}
}

func TestCache_CatalogRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetCatalog(ctx, sampleCatalog()))

	got, err := c.GetCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Bromo", got[0].Name)
	assert.Equal(t, destination.CategoryNationalPark, got[1].Category)
}

func TestCache_CatalogEmptyIsNotAMiss(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetCatalog(ctx, []destination.Destination{}))

	got, err := c.GetCatalog(ctx)
	require.NoError(t, err)
	assert.NotNil(t, got, "an empty catalog is a hit")
	assert.Empty(t, got)
}

func TestCache_CatalogMiss(t *testing.T) {
	c, _ := newTestCache(t)

	got, err := c.GetCatalog(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got, "cache miss should return nil, nil")
}

func TestCache_SetNilCatalog(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, c.SetCatalog(context.Background(), nil))
	assert.False(t, mr.Exists("catalog:all"))
}

func TestCache_DestinationSetAndGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	d := sampleCatalog()[0]
	require.NoError(t, c.Set(ctx, &d))

	got, err := c.Get(ctx, "bromo-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(54000), got.Price)
}

func TestCache_Set_NilDestination(t *testing.T) {
	c, _ := newTestCache(t)
	require.NoError(t, c.Set(context.Background(), nil))
}

func TestCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	list := sampleCatalog()
	require.NoError(t, c.SetCatalog(ctx, list))
	require.NoError(t, c.Set(ctx, &list[0]))
	require.NoError(t, c.Set(ctx, &list[1]))

	require.NoError(t, c.Invalidate(ctx, "bromo-1"))

	got, err := c.GetCatalog(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "catalog snapshot is always dropped")

	bromo, err := c.Get(ctx, "bromo-1")
	require.NoError(t, err)
	assert.Nil(t, bromo)

	toba, err := c.Get(ctx, "toba-2")
	require.NoError(t, err)
	assert.NotNil(t, toba, "unrelated destinations stay cached")
}

func TestCache_InvalidateAll(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	list := sampleCatalog()
	require.NoError(t, c.SetCatalog(ctx, list))
	require.NoError(t, c.Set(ctx, &list[0]))
	require.NoError(t, c.Set(ctx, &list[1]))
	require.NoError(t, mr.Set("unrelated", "keep"))

	require.NoError(t, c.InvalidateAll(ctx))

	assert.False(t, mr.Exists("catalog:all"))
	assert.False(t, mr.Exists("destination:bromo-1"))
	assert.False(t, mr.Exists("destination:toba-2"))
	assert.True(t, mr.Exists("unrelated"))
}

func TestCache_TTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetCatalog(ctx, sampleCatalog()))

	mr.FastForward(2 * time.Hour)

	got, err := c.GetCatalog(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "entry should be expired after TTL")
}

func TestCache_CorruptEntry(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("destination:bromo-1", "not-json"))

	_, err := c.Get(context.Background(), "bromo-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshaling")
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := cache.Connect(context.Background(), "not-a-url")
	require.Error(t, err)
}

func TestConnect_UnreachableServer(t *testing.T) {
	_, err := cache.Connect(context.Background(), "redis://localhost:19999")
	require.Error(t, err)
}
