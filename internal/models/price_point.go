package models

import "time"

// PricePoint stores one cached market price observation, one row per
// (commodity, market, day). Key is the slugified composite identifier
// used for idempotent upserts; CreatedAt is set on first write and never
// overwritten by later re-syncs of the same day.
type PricePoint struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Key       string    `json:"key" gorm:"uniqueIndex;size:191;not null"`
	Commodity string    `json:"commodity" gorm:"index;size:64"`
	Market    string    `json:"market" gorm:"index;size:64"`
	County    string    `json:"county" gorm:"index;size:64"`
	// Prices in KES per kilogram
	Retail    float64   `json:"retail"`
	Wholesale float64   `json:"wholesale"`
	// Observation day (time-of-day discarded for keying)
	Date      time.Time `json:"date" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
