package services

import (
	"sort"
	"time"

	"agrimarket/internal/models"
)

type HistoryBucket struct {
	Period    string    `json:"period"`
	Start     time.Time `json:"start"`
	Retail    float64   `json:"retail"`
	Wholesale float64   `json:"wholesale"`
	Samples   int       `json:"samples"`
}

// BucketHistory groups observations into daily, weekly (Monday-anchored)
// or monthly periods and averages same-period values. Input order does
// not matter; output is ascending by period start.
func BucketHistory(points []models.PricePoint, interval string) []HistoryBucket {
	switch interval {
	case "daily", "weekly", "monthly":
	default:
		interval = "daily"
	}

	type agg struct {
		retail, wholesale float64
		samples           int
	}
	buckets := make(map[time.Time]*agg)
	for _, pt := range points {
		start := bucketStart(pt.Date, interval)
		a, ok := buckets[start]
		if !ok {
			a = &agg{}
			buckets[start] = a
		}
		a.retail += pt.Retail
		a.wholesale += pt.Wholesale
		a.samples++
	}

	out := make([]HistoryBucket, 0, len(buckets))
	for start, a := range buckets {
		out = append(out, HistoryBucket{
			Period:    periodLabel(start, interval),
			Start:     start,
			Retail:    a.retail / float64(a.samples),
			Wholesale: a.wholesale / float64(a.samples),
			Samples:   a.samples,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func bucketStart(t time.Time, interval string) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch interval {
	case "weekly":
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	case "monthly":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

func periodLabel(start time.Time, interval string) string {
	if interval == "monthly" {
		return start.Format("2006-01")
	}
	return start.Format("2006-01-02")
}

type MarketRank struct {
	Market    string  `json:"market"`
	County    string  `json:"county"`
	Retail    float64 `json:"retail"`
	Wholesale float64 `json:"wholesale"`
	Samples   int     `json:"samples"`
}

// RankMarkets orders markets by average retail price, highest first.
func RankMarkets(points []models.PricePoint) []MarketRank {
	type agg struct {
		county            string
		retail, wholesale float64
		samples           int
	}
	markets := make(map[string]*agg)
	for _, pt := range points {
		a, ok := markets[pt.Market]
		if !ok {
			a = &agg{county: pt.County}
			markets[pt.Market] = a
		}
		a.retail += pt.Retail
		a.wholesale += pt.Wholesale
		a.samples++
	}

	out := make([]MarketRank, 0, len(markets))
	for market, a := range markets {
		out = append(out, MarketRank{
			Market:    market,
			County:    a.county,
			Retail:    a.retail / float64(a.samples),
			Wholesale: a.wholesale / float64(a.samples),
			Samples:   a.samples,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Retail != out[j].Retail {
			return out[i].Retail > out[j].Retail
		}
		return out[i].Market < out[j].Market
	})
	return out
}
