package services

import (
	"testing"
	"time"

	"agrimarket/internal/commodity"
	"agrimarket/internal/models"
)

func histPoint(market string, retail, wholesale float64, day time.Time) models.PricePoint {
	return models.PricePoint{
		Commodity: commodity.Tomatoes,
		Market:    market,
		County:    "Nairobi",
		Retail:    retail,
		Wholesale: wholesale,
		Date:      day,
	}
}

func TestBucketHistoryDaily(t *testing.T) {
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	points := []models.PricePoint{
		histPoint("Wakulima", 40, 32, day.AddDate(0, 0, 1)),
		histPoint("Wakulima", 50, 40, day),
		histPoint("Kibuye", 60, 48, day),
	}

	series := BucketHistory(points, "daily")
	if len(series) != 2 {
		t.Fatalf("got %d buckets, want 2", len(series))
	}
	if series[0].Period != "2025-03-03" || series[1].Period != "2025-03-04" {
		t.Errorf("periods out of order: %q, %q", series[0].Period, series[1].Period)
	}
	if series[0].Retail != 55 || series[0].Samples != 2 {
		t.Errorf("first bucket = %+v, want retail 55 over 2 samples", series[0])
	}
}

func TestBucketHistoryWeeklyMondayAnchor(t *testing.T) {
	// 2025-03-05 is a Wednesday, 2025-03-09 a Sunday: same ISO week.
	// 2025-03-10 is the following Monday.
	points := []models.PricePoint{
		histPoint("Wakulima", 40, 32, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)),
		histPoint("Wakulima", 60, 48, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)),
		histPoint("Wakulima", 70, 56, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)),
	}

	series := BucketHistory(points, "weekly")
	if len(series) != 2 {
		t.Fatalf("got %d buckets, want 2", len(series))
	}
	if series[0].Period != "2025-03-03" {
		t.Errorf("first week anchor = %q, want the Monday 2025-03-03", series[0].Period)
	}
	if series[0].Retail != 50 || series[0].Samples != 2 {
		t.Errorf("first week = %+v, want retail 50 over 2 samples", series[0])
	}
	if series[1].Period != "2025-03-10" || series[1].Samples != 1 {
		t.Errorf("second week = %+v", series[1])
	}
}

func TestBucketHistoryMonthly(t *testing.T) {
	points := []models.PricePoint{
		histPoint("Wakulima", 40, 32, time.Date(2025, 2, 27, 0, 0, 0, 0, time.UTC)),
		histPoint("Wakulima", 50, 40, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		histPoint("Wakulima", 70, 56, time.Date(2025, 3, 28, 0, 0, 0, 0, time.UTC)),
	}

	series := BucketHistory(points, "monthly")
	if len(series) != 2 {
		t.Fatalf("got %d buckets, want 2", len(series))
	}
	if series[0].Period != "2025-02" || series[1].Period != "2025-03" {
		t.Errorf("periods = %q, %q", series[0].Period, series[1].Period)
	}
	if series[1].Retail != 60 {
		t.Errorf("march retail = %v, want 60", series[1].Retail)
	}
}

func TestBucketHistoryUnknownIntervalFallsBackToDaily(t *testing.T) {
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	series := BucketHistory([]models.PricePoint{histPoint("Wakulima", 40, 32, day)}, "hourly")
	if len(series) != 1 || series[0].Period != "2025-03-03" {
		t.Errorf("fallback series = %+v", series)
	}
}

func TestBucketHistoryEmpty(t *testing.T) {
	if series := BucketHistory(nil, "daily"); len(series) != 0 {
		t.Errorf("expected empty series, got %+v", series)
	}
}

func TestRankMarkets(t *testing.T) {
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	points := []models.PricePoint{
		histPoint("Wakulima", 40, 32, day),
		histPoint("Wakulima", 60, 48, day.AddDate(0, 0, 1)),
		histPoint("Kibuye", 70, 56, day),
		histPoint("Kongowea", 50, 40, day),
	}

	ranks := RankMarkets(points)
	if len(ranks) != 3 {
		t.Fatalf("got %d markets, want 3", len(ranks))
	}
	if ranks[0].Market != "Kibuye" || ranks[0].Retail != 70 {
		t.Errorf("top rank = %+v, want Kibuye at 70", ranks[0])
	}
	if ranks[1].Market != "Wakulima" || ranks[1].Retail != 50 || ranks[1].Samples != 2 {
		t.Errorf("second rank = %+v, want averaged Wakulima at 50", ranks[1])
	}
	if ranks[2].Market != "Kongowea" {
		t.Errorf("third rank = %+v", ranks[2])
	}
}

func TestRankMarketsTiebreakByName(t *testing.T) {
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	points := []models.PricePoint{
		histPoint("Kibuye", 50, 40, day),
		histPoint("Eldoret Main", 50, 40, day),
	}
	ranks := RankMarkets(points)
	if ranks[0].Market != "Eldoret Main" || ranks[1].Market != "Kibuye" {
		t.Errorf("tiebreak order = %q, %q", ranks[0].Market, ranks[1].Market)
	}
}
