// Package history keeps an optional local audit log of deploy runs. It is
// write-only from the orchestrator's perspective: no deploy decision ever
// reads it, so each run stays stateless with respect to the control
// machine.
package history

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Record is one deploy run outcome.
type Record struct {
	ID          uint   `gorm:"primaryKey"`
	RunID       string `gorm:"index"`
	Environment string `gorm:"index"`
	Mode        string
	ReleaseID   string
	Outcome     string
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Recorder appends and lists deploy records.
type Recorder struct {
	db *gorm.DB
}

// Open creates or migrates the history database at path.
func Open(path string) (*Recorder, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening history db %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrating history db: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Append implements deploy.Recorder.
func (r *Recorder) Append(runID, environment, mode, releaseID, outcome, errText string, started, finished time.Time) error {
	return r.db.Create(&Record{
		RunID:       runID,
		Environment: environment,
		Mode:        mode,
		ReleaseID:   releaseID,
		Outcome:     outcome,
		Error:       errText,
		StartedAt:   started,
		FinishedAt:  finished,
	}).Error
}

// List returns the most recent records for an environment, newest first.
func (r *Recorder) List(environment string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []Record
	err := r.db.
		Where("environment = ?", environment).
		Order("started_at desc").
		Limit(limit).
		Find(&records).Error
	return records, err
}
