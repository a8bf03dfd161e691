package services

import (
	"errors"
	"log"
	"sync"
	"time"

	"agrimarket/internal/auth"
	"agrimarket/internal/models"
	"agrimarket/internal/store"
)

// averageWindow caps how many recent observations feed an average, so the
// read cost stays bounded.
const averageWindow = 100

// PriceFeed is the read/subscribe façade over the price cache. All reads
// degrade to empty results for unauthenticated or unauthorized callers;
// that is a loggable condition, not an application error.
type PriceFeed struct {
	cache PriceCache
	hub   *store.Hub
}

func NewPriceFeed(cache PriceCache, hub *store.Hub) *PriceFeed {
	return &PriceFeed{cache: cache, hub: hub}
}

func (f *PriceFeed) Query(p *auth.Principal, filter store.Filter) []models.PricePoint {
	points, err := f.cache.Query(p, filter)
	if err != nil {
		logDegrade("query", err)
		return []models.PricePoint{}
	}
	return points
}

func (f *PriceFeed) Latest(p *auth.Principal, commodity, market string) *models.PricePoint {
	pt, err := f.cache.Latest(p, commodity, market)
	if err != nil {
		logDegrade("latest", err)
		return nil
	}
	return pt
}

type AveragePrice struct {
	Retail    float64 `json:"retail"`
	Wholesale float64 `json:"wholesale"`
	Samples   int     `json:"samples"`
}

// Average is the arithmetic mean over at most averageWindow recent
// observations for a commodity, nil when nothing matches.
func (f *PriceFeed) Average(p *auth.Principal, commodity string, since time.Time) *AveragePrice {
	points, err := f.cache.Recent(p, commodity, since, averageWindow)
	if err != nil {
		logDegrade("average", err)
		return nil
	}
	if len(points) == 0 {
		return nil
	}
	avg := &AveragePrice{Samples: len(points)}
	for _, pt := range points {
		avg.Retail += pt.Retail
		avg.Wholesale += pt.Wholesale
	}
	avg.Retail /= float64(len(points))
	avg.Wholesale /= float64(len(points))
	return avg
}

// Subscribe delivers an initial snapshot and a fresh snapshot after every
// matching cache change. The returned function stops delivery and
// releases the hub listener; calling it more than once is safe.
// Unauthenticated callers get a working no-op unsubscribe and no
// snapshots.
func (f *PriceFeed) Subscribe(p *auth.Principal, filter store.Filter, onChange func([]models.PricePoint)) func() {
	snapshot, err := f.cache.Query(p, filter)
	if err != nil {
		logDegrade("subscribe", err)
		return func() {}
	}

	id, ch := f.hub.Subscribe()
	done := make(chan struct{})
	go func() {
		onChange(snapshot)
		for {
			select {
			case pt, ok := <-ch:
				if !ok {
					return
				}
				if matches(filter, pt) {
					onChange(f.Query(p, filter))
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.hub.Unsubscribe(id)
			close(done)
		})
	}
}

func matches(f store.Filter, pt models.PricePoint) bool {
	if f.Commodity != "" && pt.Commodity != f.Commodity {
		return false
	}
	if f.Market != "" && pt.Market != f.Market {
		return false
	}
	if f.County != "" && pt.County != f.County {
		return false
	}
	if !f.StartDate.IsZero() && pt.Date.Before(f.StartDate) {
		return false
	}
	if !f.EndDate.IsZero() && pt.Date.After(f.EndDate) {
		return false
	}
	return true
}

func logDegrade(op string, err error) {
	if errors.Is(err, store.ErrAuthenticationRequired) || errors.Is(err, store.ErrPermissionDenied) {
		log.Printf("[feed] %s: %v, returning empty result", op, err)
		return
	}
	log.Printf("[feed] %s failed: %v", op, err)
}
