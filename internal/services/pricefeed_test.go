package services

import (
	"testing"
	"time"

	"agrimarket/internal/commodity"
	"agrimarket/internal/models"
	"agrimarket/internal/store"
)

func seedPoint(cache *fakeCache, canonical, market string, retail, wholesale float64, day time.Time) models.PricePoint {
	pt := models.PricePoint{
		Key:       commodity.Key(canonical, market, day),
		Commodity: canonical,
		Market:    market,
		Retail:    retail,
		Wholesale: wholesale,
		Date:      day,
	}
	if county, err := commodity.ResolveCounty(market); err == nil {
		pt.County = county
	}
	if err := cache.Upsert(officer, &pt); err != nil {
		panic(err)
	}
	return pt
}

func TestFeedQueryDegradesUnauthenticated(t *testing.T) {
	cache := newFakeCache()
	seedPoint(cache, commodity.Tomatoes, "Wakulima", 50, 40, asOf)
	feed := NewPriceFeed(cache, store.NewHub())

	got := feed.Query(nil, store.Filter{})
	if got == nil {
		t.Fatal("degraded query must return an empty slice, not nil")
	}
	if len(got) != 0 {
		t.Errorf("unauthenticated query returned %d points", len(got))
	}
}

func TestFeedLatestDegradesUnauthenticated(t *testing.T) {
	cache := newFakeCache()
	seedPoint(cache, commodity.Tomatoes, "Wakulima", 50, 40, asOf)
	feed := NewPriceFeed(cache, store.NewHub())

	if pt := feed.Latest(nil, commodity.Tomatoes, ""); pt != nil {
		t.Errorf("unauthenticated latest returned %+v", pt)
	}
}

func TestFeedQueryFilters(t *testing.T) {
	cache := newFakeCache()
	seedPoint(cache, commodity.Tomatoes, "Wakulima", 50, 40, asOf)
	seedPoint(cache, commodity.Tomatoes, "Kibuye", 55, 44, asOf)
	seedPoint(cache, commodity.Onions, "Wakulima", 60, 48, asOf)
	feed := NewPriceFeed(cache, store.NewHub())

	got := feed.Query(officer, store.Filter{Commodity: commodity.Tomatoes, Market: "Wakulima"})
	if len(got) != 1 {
		t.Fatalf("got %d points, want 1", len(got))
	}
	if got[0].Market != "Wakulima" || got[0].Commodity != commodity.Tomatoes {
		t.Errorf("wrong point matched: %+v", got[0])
	}
}

func TestFeedAverage(t *testing.T) {
	cache := newFakeCache()
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	seedPoint(cache, commodity.Kale, "Wakulima", 10, 8, day)
	seedPoint(cache, commodity.Kale, "Kibuye", 20, 16, day.AddDate(0, 0, 1))
	seedPoint(cache, commodity.Kale, "Kongowea", 30, 24, day.AddDate(0, 0, 2))
	feed := NewPriceFeed(cache, store.NewHub())

	avg := feed.Average(officer, commodity.Kale, time.Time{})
	if avg == nil {
		t.Fatal("expected an average")
	}
	if avg.Retail != 20 || avg.Wholesale != 16 || avg.Samples != 3 {
		t.Errorf("average = %+v, want retail 20 wholesale 16 over 3 samples", avg)
	}
}

func TestFeedAverageEmptyAndUnauthenticated(t *testing.T) {
	cache := newFakeCache()
	feed := NewPriceFeed(cache, store.NewHub())

	if avg := feed.Average(officer, commodity.Kale, time.Time{}); avg != nil {
		t.Errorf("average over nothing = %+v, want nil", avg)
	}
	seedPoint(cache, commodity.Kale, "Wakulima", 10, 8, asOf)
	if avg := feed.Average(nil, commodity.Kale, time.Time{}); avg != nil {
		t.Errorf("unauthenticated average = %+v, want nil", avg)
	}
}

func TestFeedAverageWindowCap(t *testing.T) {
	cache := newFakeCache()
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < averageWindow+50; i++ {
		seedPoint(cache, commodity.Cabbage, "Wakulima", 35, 28, day.AddDate(0, 0, i))
	}
	feed := NewPriceFeed(cache, store.NewHub())

	avg := feed.Average(officer, commodity.Cabbage, time.Time{})
	if avg == nil {
		t.Fatal("expected an average")
	}
	if avg.Samples != averageWindow {
		t.Errorf("samples = %d, want the %d-observation cap", avg.Samples, averageWindow)
	}
}

func awaitSnapshot(t *testing.T, ch <-chan []models.PricePoint) []models.PricePoint {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
		return nil
	}
}

func TestFeedSubscribe(t *testing.T) {
	cache := newFakeCache()
	hub := store.NewHub()
	seedPoint(cache, commodity.Tomatoes, "Wakulima", 50, 40, asOf)
	feed := NewPriceFeed(cache, hub)

	snapshots := make(chan []models.PricePoint, 8)
	unsubscribe := feed.Subscribe(officer, store.Filter{Commodity: commodity.Tomatoes}, func(snap []models.PricePoint) {
		snapshots <- snap
	})
	defer unsubscribe()

	if initial := awaitSnapshot(t, snapshots); len(initial) != 1 {
		t.Fatalf("initial snapshot has %d points, want 1", len(initial))
	}

	pt := seedPoint(cache, commodity.Tomatoes, "Kibuye", 55, 44, asOf)
	hub.Broadcast(pt)
	if updated := awaitSnapshot(t, snapshots); len(updated) != 2 {
		t.Fatalf("updated snapshot has %d points, want 2", len(updated))
	}

	// non-matching change does not trigger a delivery
	other := seedPoint(cache, commodity.Onions, "Wakulima", 60, 48, asOf)
	hub.Broadcast(other)
	select {
	case snap := <-snapshots:
		t.Fatalf("unexpected snapshot for non-matching change: %d points", len(snap))
	case <-time.After(100 * time.Millisecond):
	}

	unsubscribe()
	unsubscribe() // second call is a no-op

	hub.Broadcast(seedPoint(cache, commodity.Tomatoes, "Kongowea", 52, 41, asOf))
	select {
	case <-snapshots:
		t.Fatal("snapshot delivered after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFeedSubscribeUnauthenticated(t *testing.T) {
	cache := newFakeCache()
	hub := store.NewHub()
	seedPoint(cache, commodity.Tomatoes, "Wakulima", 50, 40, asOf)
	feed := NewPriceFeed(cache, hub)

	snapshots := make(chan []models.PricePoint, 1)
	unsubscribe := feed.Subscribe(nil, store.Filter{}, func(snap []models.PricePoint) {
		snapshots <- snap
	})

	select {
	case <-snapshots:
		t.Fatal("unauthenticated subscriber received a snapshot")
	case <-time.After(100 * time.Millisecond):
	}
	unsubscribe()
	unsubscribe()
}
