// Package storage journals order intents, execution outcomes, and closed
// round trips to SQLite so a session leaves an auditable trail.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradepulse/internal/domain"
)

// IntentRecord is one emitted order intent and, once known, its outcome.
type IntentRecord struct {
	ID           uint   `gorm:"primaryKey"`
	IntentID     uint64 `gorm:"uniqueIndex"`
	Symbol       string
	Side         string
	Type         string
	Qty          string // decimal as text, SQLite has no decimal affinity
	TriggerPrice string
	ReduceOnly   bool
	Simulated    bool
	Outcome      string // empty until an outcome arrives
	OutcomePrice string
	Reason       string
	CreatedAt    time.Time
	ResolvedAt   *time.Time
}

// RoundTripRecord is one closed position.
type RoundTripRecord struct {
	ID       uint `gorm:"primaryKey"`
	Symbol   string
	Side     string
	Entry    string
	Exit     string
	Qty      string
	Pnl      string
	OpenedAt time.Time
	ClosedAt time.Time
}

// Storage persists the trading journal.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite journal at path.
func NewStorage(path string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&IntentRecord{}, &RoundTripRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// SaveIntent journals one emitted intent.
func (s *Storage) SaveIntent(intent domain.OrderIntent) error {
	rec := IntentRecord{
		IntentID:     intent.ID,
		Symbol:       intent.Symbol,
		Side:         intent.Side,
		Type:         intent.Type,
		Qty:          intent.Qty.String(),
		TriggerPrice: intent.TriggerPrice.String(),
		ReduceOnly:   intent.ReduceOnly,
		Simulated:    intent.Simulated,
		CreatedAt:    intent.CreatedAt,
	}
	return s.db.Create(&rec).Error
}

// SaveOutcome resolves the journaled intent the outcome refers to. An
// outcome for an unknown intent is journaled as its own row so nothing
// is silently lost.
func (s *Storage) SaveOutcome(out domain.ExecutionOutcome) error {
	ts := out.Ts
	res := s.db.Model(&IntentRecord{}).
		Where("intent_id = ?", out.IntentID).
		Updates(map[string]interface{}{
			"outcome":       out.Kind.String(),
			"outcome_price": out.Price.String(),
			"reason":        out.Reason,
			"resolved_at":   &ts,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		rec := IntentRecord{
			IntentID:     out.IntentID,
			Outcome:      out.Kind.String(),
			OutcomePrice: out.Price.String(),
			Reason:       out.Reason,
			CreatedAt:    out.Ts,
			ResolvedAt:   &ts,
		}
		return s.db.Create(&rec).Error
	}
	return nil
}

// SaveClosedTrade journals one closed round trip.
func (s *Storage) SaveClosedTrade(tr domain.ClosedTrade) error {
	rec := RoundTripRecord{
		Symbol:   tr.Symbol,
		Side:     tr.Side,
		Entry:    tr.Entry.String(),
		Exit:     tr.Exit.String(),
		Qty:      tr.Qty.String(),
		Pnl:      tr.Pnl.String(),
		OpenedAt: tr.OpenedAt,
		ClosedAt: tr.ClosedAt,
	}
	return s.db.Create(&rec).Error
}

// RecentRoundTrips returns the most recent closed trades, newest first.
func (s *Storage) RecentRoundTrips(limit int) ([]RoundTripRecord, error) {
	var recs []RoundTripRecord
	err := s.db.Order("closed_at desc").Limit(limit).Find(&recs).Error
	return recs, err
}

// OpenIntents returns journaled intents that never received an outcome.
func (s *Storage) OpenIntents() ([]IntentRecord, error) {
	var recs []IntentRecord
	err := s.db.Where("outcome = ?", "").Find(&recs).Error
	return recs, err
}
