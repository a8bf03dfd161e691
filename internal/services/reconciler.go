// Package services holds the sync pipeline and the read façade over the
// price cache.
package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"agrimarket/internal/auth"
	"agrimarket/internal/commodity"
	"agrimarket/internal/models"
	"agrimarket/internal/services/prediction"
	"agrimarket/internal/store"
)

// PriceCache is the slice of the store the pipeline and façade use;
// *store.PriceStore satisfies it.
type PriceCache interface {
	Upsert(p *auth.Principal, pt *models.PricePoint) error
	PreviousPrice(p *auth.Principal, commodity, market string, atOrBefore time.Time) (float64, error)
	Query(p *auth.Principal, f store.Filter) ([]models.PricePoint, error)
	Latest(p *auth.Principal, commodity, market string) (*models.PricePoint, error)
	Recent(p *auth.Principal, commodity string, since time.Time, limit int) ([]models.PricePoint, error)
	InsertSyncLog(p *auth.Principal, entry *models.SyncLog) error
}

type Predictor interface {
	Predict(ctx context.Context, req prediction.Request) (float64, bool, error)
}

const (
	// Wholesale is modeled as cheaper than retail: the wholesale call is
	// seeded at a discount, and a missing side is derived from the other
	// by a fixed ratio.
	wholesaleSeedFactor = 0.85
	retailFromWholesale = 1.2
	wholesaleFromRetail = 0.8
)

type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeWritten
)

type PairResult struct {
	Commodity string
	Market    string
	Retail    float64
	Wholesale float64
	Outcome   Outcome
}

// Reconciler refreshes one (commodity, market) pair of the cache from the
// external predictor.
type Reconciler struct {
	cache     PriceCache
	predictor Predictor
}

func NewReconciler(cache PriceCache, predictor Predictor) *Reconciler {
	return &Reconciler{cache: cache, predictor: predictor}
}

// ReconcileOne seeds from the previous month's cached price, predicts
// retail and wholesale in parallel, derives a missing side by ratio, and
// upserts the day's observation. Both sides missing means Skipped and no
// write. The returned error is reserved for upsert failures and
// authentication hard stops; predictor failures only empty a side.
func (r *Reconciler) ReconcileOne(ctx context.Context, p *auth.Principal, canonical, market string, asOf time.Time) (PairResult, error) {
	res := PairResult{Commodity: canonical, Market: market, Outcome: OutcomeSkipped}

	county, err := commodity.ResolveCounty(market)
	if err != nil {
		return res, err
	}

	seed, err := r.cache.PreviousPrice(p, canonical, market, asOf.AddDate(0, -1, 0))
	if err != nil {
		if errors.Is(err, store.ErrAuthenticationRequired) {
			return res, err
		}
		log.Printf("[sync] %s/%s: previous price lookup failed: %v", canonical, market, err)
		seed = 0
	}
	if seed <= 0 {
		seed = commodity.SeedPrice(canonical)
	}

	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	base := prediction.Request{
		Date:      day.Format("2006-01-02"),
		Admin1:    county,
		Market:    commodity.PredictorMarket(market),
		Commodity: commodity.PredictorToken(canonical),
	}

	// Both sides fired together; a failed side leaves 0 and never aborts
	// the other.
	var retail, wholesale float64
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		retail = r.predictSide(ctx, base, "retail", seed)
	}()
	go func() {
		defer wg.Done()
		wholesale = r.predictSide(ctx, base, "wholesale", seed*wholesaleSeedFactor)
	}()
	wg.Wait()

	switch {
	case retail > 0 && wholesale > 0:
	case wholesale > 0:
		retail = wholesale * retailFromWholesale
	case retail > 0:
		wholesale = retail * wholesaleFromRetail
	default:
		return res, nil
	}
	if retail <= 0 || wholesale <= 0 {
		return res, nil
	}

	pt := &models.PricePoint{
		Key:       commodity.Key(canonical, market, day),
		Commodity: canonical,
		Market:    market,
		County:    county,
		Retail:    retail,
		Wholesale: wholesale,
		Date:      day,
	}
	if err := r.cache.Upsert(p, pt); err != nil {
		return res, err
	}
	res.Retail = retail
	res.Wholesale = wholesale
	res.Outcome = OutcomeWritten
	return res, nil
}

func (r *Reconciler) predictSide(ctx context.Context, base prediction.Request, priceType string, seed float64) float64 {
	req := base
	req.PriceType = priceType
	req.PreviousMonthPrice = seed

	px, usable, err := r.predictor.Predict(ctx, req)
	if err != nil {
		var svcErr *prediction.ServiceError
		switch {
		case errors.Is(err, prediction.ErrCommodityUnsupported):
			log.Printf("[sync] %s %s: commodity flagged unsupported, call skipped", base.Commodity, priceType)
		case errors.As(err, &svcErr):
			log.Printf("[sync] %s/%s %s: predictor HTTP %d", base.Commodity, base.Market, priceType, svcErr.Status)
		default:
			log.Printf("[sync] %s/%s %s: predict failed: %v", base.Commodity, base.Market, priceType, err)
		}
		return 0
	}
	if !usable {
		return 0
	}
	return px
}
