package cache

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestDeletePattern(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()

	keys := []string{
		"cache:GET:/markets?limit=10",
		"cache:GET:/markets/abc",
		"cache:GET:/events?closed=false",
		"cache:GET:/profile/xyz",
	}
	for _, k := range keys {
		if err := client.Set(ctx, k, "x", 0).Err(); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	inv := NewInvalidator(client)
	deleted, err := inv.DeletePattern(ctx, PatternMarkets)
	if err != nil {
		t.Fatalf("DeletePattern failed: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}

	for _, k := range []string{"cache:GET:/events?closed=false", "cache:GET:/profile/xyz"} {
		if err := client.Get(ctx, k).Err(); err != nil {
			t.Fatalf("unrelated key %q was deleted", k)
		}
	}
	if err := client.Get(ctx, "cache:GET:/markets/abc").Err(); err != redis.Nil {
		t.Fatal("matching key survived")
	}
}

func TestInvalidateMarketData(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()

	seed := map[string]string{
		"api:GET:/markets?x=1": "a",
		"api:GET:/events":      "b",
		"api:GET:/stats":       "c",
		"api:GET:/other":       "d",
	}
	for k, v := range seed {
		if err := client.Set(ctx, k, v, 0).Err(); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	NewInvalidator(client).InvalidateMarketData(ctx)

	if n := client.Exists(ctx, "api:GET:/markets?x=1", "api:GET:/events", "api:GET:/stats").Val(); n != 0 {
		t.Fatalf("%d market-data keys survived invalidation", n)
	}
	if n := client.Exists(ctx, "api:GET:/other").Val(); n != 1 {
		t.Fatal("unrelated key was invalidated")
	}
}
