// Package store is the MySQL-backed price cache. Every entry point runs a
// capability check first: reads need an authenticated principal, writes
// need a writer role. Callers decide whether those failures are fatal.
package store

import (
	"errors"
	"fmt"
	"time"

	"agrimarket/internal/auth"
	"agrimarket/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrPermissionDenied       = errors.New("permission denied")
)

// maxQueryRows bounds unfiltered reads.
const maxQueryRows = 500

// Filter narrows price queries. String fields match exactly; zero times
// leave the date range open on that side.
type Filter struct {
	Commodity string
	Market    string
	County    string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}

type PriceStore struct {
	db  *gorm.DB
	hub *Hub
}

func New(db *gorm.DB, hub *Hub) *PriceStore {
	return &PriceStore{db: db, hub: hub}
}

func checkRead(p *auth.Principal) error {
	if p == nil {
		return ErrAuthenticationRequired
	}
	return nil
}

func checkWrite(p *auth.Principal) error {
	if p == nil {
		return ErrAuthenticationRequired
	}
	if !p.CanWrite() {
		return ErrPermissionDenied
	}
	return nil
}

// Upsert writes one observation keyed by its composite key. Re-syncing
// the same key updates prices and updated_at but never created_at.
func (s *PriceStore) Upsert(p *auth.Principal, pt *models.PricePoint) error {
	if err := checkWrite(p); err != nil {
		return err
	}
	if pt.Key == "" {
		return fmt.Errorf("price point has no key")
	}
	now := time.Now()
	pt.CreatedAt = now
	pt.UpdatedAt = now
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"commodity", "market", "county", "retail", "wholesale", "date", "updated_at",
		}),
	}).Create(pt).Error
	if err != nil {
		return fmt.Errorf("upsert %s: %w", pt.Key, err)
	}
	s.hub.Broadcast(*pt)
	return nil
}

// PreviousPrice returns the retail price of the most recent cached
// observation at or before the given date, or 0 when none exists.
func (s *PriceStore) PreviousPrice(p *auth.Principal, commodity, market string, atOrBefore time.Time) (float64, error) {
	if err := checkRead(p); err != nil {
		return 0, err
	}
	var pt models.PricePoint
	err := s.db.
		Where("commodity = ? AND market = ? AND date <= ?", commodity, market, atOrBefore).
		Order("date DESC").
		First(&pt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("previous price lookup: %w", err)
	}
	return pt.Retail, nil
}

// Query returns matching observations, newest first, capped at
// maxQueryRows regardless of the requested limit.
func (s *PriceStore) Query(p *auth.Principal, f Filter) ([]models.PricePoint, error) {
	if err := checkRead(p); err != nil {
		return nil, err
	}
	q := s.db.Model(&models.PricePoint{})
	if f.Commodity != "" {
		q = q.Where("commodity = ?", f.Commodity)
	}
	if f.Market != "" {
		q = q.Where("market = ?", f.Market)
	}
	if f.County != "" {
		q = q.Where("county = ?", f.County)
	}
	if !f.StartDate.IsZero() {
		q = q.Where("date >= ?", f.StartDate)
	}
	if !f.EndDate.IsZero() {
		q = q.Where("date <= ?", f.EndDate)
	}
	limit := f.Limit
	if limit <= 0 || limit > maxQueryRows {
		limit = maxQueryRows
	}
	var points []models.PricePoint
	if err := q.Order("date DESC, updated_at DESC").Limit(limit).Find(&points).Error; err != nil {
		return nil, fmt.Errorf("price query: %w", err)
	}
	return points, nil
}

// Latest returns the most recent observation for a commodity, optionally
// narrowed to one market. Nil when nothing matches.
func (s *PriceStore) Latest(p *auth.Principal, commodity, market string) (*models.PricePoint, error) {
	if err := checkRead(p); err != nil {
		return nil, err
	}
	q := s.db.Where("commodity = ?", commodity)
	if market != "" {
		q = q.Where("market = ?", market)
	}
	var pt models.PricePoint
	err := q.Order("date DESC, updated_at DESC").First(&pt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest price lookup: %w", err)
	}
	return &pt, nil
}

// Recent returns up to limit observations for a commodity since the given
// date, newest first. A zero since leaves the window open.
func (s *PriceStore) Recent(p *auth.Principal, commodity string, since time.Time, limit int) ([]models.PricePoint, error) {
	if err := checkRead(p); err != nil {
		return nil, err
	}
	q := s.db.Where("commodity = ?", commodity)
	if !since.IsZero() {
		q = q.Where("date >= ?", since)
	}
	if limit <= 0 || limit > maxQueryRows {
		limit = maxQueryRows
	}
	var points []models.PricePoint
	if err := q.Order("date DESC").Limit(limit).Find(&points).Error; err != nil {
		return nil, fmt.Errorf("recent prices: %w", err)
	}
	return points, nil
}

// InsertSyncLog records a completed sync pass.
func (s *PriceStore) InsertSyncLog(p *auth.Principal, entry *models.SyncLog) error {
	if err := checkWrite(p); err != nil {
		return err
	}
	if err := s.db.Create(entry).Error; err != nil {
		return fmt.Errorf("insert sync log: %w", err)
	}
	return nil
}

// SyncLogs returns the most recent sync pass records.
func (s *PriceStore) SyncLogs(p *auth.Principal, limit int) ([]models.SyncLog, error) {
	if err := checkRead(p); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var logs []models.SyncLog
	if err := s.db.Order("started_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("sync logs: %w", err)
	}
	return logs, nil
}
