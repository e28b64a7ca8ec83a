package memory

import (
	"context"
	"testing"

	"habita/internal/app/dto"
)

func TestOccupancyCacheDropsWritesFromBeforeInvalidation(t *testing.T) {
	ctx := context.Background()
	cache := NewOccupancyCache()

	gen, err := cache.Generation(ctx, "prop-1")
	if err != nil {
		t.Fatalf("generation: %v", err)
	}
	// a reader loaded the calendar at gen, then a write committed and invalidated
	if err := cache.Invalidate(ctx, "prop-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	stale := dto.OccupiedDates{PropertyID: "prop-1", Dates: []string{"2026-03-01"}}
	if err := cache.Set(ctx, "prop-1", gen, stale); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "prop-1"); ok {
		t.Fatalf("stale value must not be cached")
	}

	gen, _ = cache.Generation(ctx, "prop-1")
	fresh := dto.OccupiedDates{PropertyID: "prop-1"}
	if err := cache.Set(ctx, "prop-1", gen, fresh); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, _ := cache.Get(ctx, "prop-1")
	if !ok || got.PropertyID != "prop-1" || len(got.Dates) != 0 {
		t.Fatalf("expected fresh value, got %+v ok=%v", got, ok)
	}
}
