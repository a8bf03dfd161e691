package models

import "time"

// SyncLog records the outcome of one completed sync pass over the
// commodity x market grid.
type SyncLog struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Success     int       `json:"success"`
	Skipped     int       `json:"skipped"`
	Errors      int       `json:"errors"`
	TriggeredBy string    `json:"triggered_by" gorm:"size:64"`
	StartedAt   time.Time `json:"started_at" gorm:"index"`
	FinishedAt  time.Time `json:"finished_at"`
}
