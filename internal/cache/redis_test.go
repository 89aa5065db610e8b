package cache

import (
	"context"
	"testing"
	"time"

	"tablet-tracker/internal/testutil"
)

func TestBagStatusKey(t *testing.T) {
	if got := BagStatusKey(12, "IBU-24", "2/3"); got != "bag_status:12:IBU-24:2/3" {
		t.Fatalf("key = %q", got)
	}
}

func TestHelpersWithoutRedis(t *testing.T) {
	SetClient(nil)
	ctx := context.Background()

	SetCached(ctx, "k", []byte("v"), time.Minute)
	if _, ok := GetCached(ctx, "k"); ok {
		t.Fatal("cache hit without a client")
	}
	InvalidateBagStatus(ctx, 0, 1, 1, -4)
	InvalidateSettingCaches(ctx)
	InvalidateKeys(ctx, "k")
	if IsHealthy() {
		t.Fatal("nil client reported healthy")
	}
	Close()
}

func TestInvalidateBagStatusIsScopedToPO(t *testing.T) {
	client, mem := testutil.NewRedisClient()
	SetClient(client)
	defer SetClient(nil)
	ctx := context.Background()

	SetCached(ctx, BagStatusKey(1, "IBU-24", "1/1"), []byte(`{"status":"match"}`), time.Minute)
	SetCached(ctx, BagStatusKey(1, "IBU-24", "2/3"), []byte(`{"status":"under"}`), time.Minute)
	SetCached(ctx, BagStatusKey(2, "IBU-24", "1/1"), []byte(`{"status":"over"}`), time.Minute)

	data, ok := GetCached(ctx, BagStatusKey(1, "IBU-24", "2/3"))
	if !ok || string(data) != `{"status":"under"}` {
		t.Fatalf("GetCached = %q, %v", data, ok)
	}

	InvalidateBagStatus(ctx, 1)
	keys := mem.Keys()
	if len(keys) != 1 || keys[0] != BagStatusKey(2, "IBU-24", "1/1") {
		t.Fatalf("keys after invalidating PO 1 = %v", keys)
	}

	InvalidateSettingCaches(ctx)
	if keys := mem.Keys(); len(keys) != 0 {
		t.Fatalf("keys after settings change = %v", keys)
	}
	if !IsHealthy() {
		t.Fatal("stub client reported unhealthy")
	}
}
