package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	// ErrNotPrivileged is returned by Open for a non-root process unless
	// Config.AllowUnprivileged is set.
	ErrNotPrivileged = errors.New("ledger: root privileges required")

	// ErrEventNotFound is returned when no event carries the requested id.
	ErrEventNotFound = errors.New("ledger: event not found")

	// ErrIDsExhausted is returned once a fix pass has used all 999 ids of
	// its rule.
	ErrIDsExhausted = errors.New("ledger: event ids exhausted")
)

// eventRecord is the database row for one event. Seq is the insertion order.
type eventRecord struct {
	Seq        uint   `gorm:"primaryKey;autoIncrement"`
	EventID    string `gorm:"uniqueIndex;size:7;not null"`
	Rule       int    `gorm:"index;not null"`
	Kind       string `gorm:"size:16;not null"`
	Payload    string `gorm:"not null"`
	RecordedAt time.Time
}

func (eventRecord) TableName() string { return "change_events" }

// Ledger is the persistent change-event log.
type Ledger struct {
	cfg    Config
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open creates the ledger directories and opens the event database.
func Open(cfg Config, logger *slog.Logger) (*Ledger, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.AllowUnprivileged && os.Geteuid() != 0 {
		return nil, ErrNotPrivileged
	}

	for _, dir := range []string{cfg.DataDir, cfg.ArchiveDir, cfg.SnapshotDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("ledger: create directory %s: %w", dir, err)
		}
	}

	dbPath := filepath.Join(cfg.DataDir, cfg.DBFile)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", dbPath, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", dbPath, err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&eventRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ledger: migrate %s: %w", dbPath, err)
	}

	return &Ledger{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "ledger"),
		now:    time.Now,
	}, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return fmt.Errorf("ledger: close: %w", err)
	}
	return sqlDB.Close()
}

// RecordChgEvent appends an event. An existing event with the same id is
// replaced and moves to the end of the rule's history.
func (l *Ledger) RecordChgEvent(id string, p Payload) error {
	rule, _, err := ParseEventID(id)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("ledger: record event %s: nil payload", id)
	}
	data, err := encodePayload(p)
	if err != nil {
		return fmt.Errorf("ledger: record event %s: %w", id, err)
	}

	rec := eventRecord{
		EventID:    id,
		Rule:       rule,
		Kind:       string(p.Kind()),
		Payload:    data,
		RecordedAt: l.now().UTC(),
	}
	err = l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&eventRecord{}).Error; err != nil {
			return err
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		return fmt.Errorf("ledger: record event %s: %w", id, err)
	}

	l.logger.Debug("change event recorded", "event_id", id, "kind", rec.Kind)
	return nil
}

// GetChgEvent returns the event recorded under id.
func (l *Ledger) GetChgEvent(id string) (Event, error) {
	var rec eventRecord
	err := l.db.Where("event_id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Event{}, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	if err != nil {
		return Event{}, fmt.Errorf("ledger: get event %s: %w", id, err)
	}
	return rec.event()
}

// FindRuleChanges returns every event recorded for rule in insertion order.
func (l *Ledger) FindRuleChanges(rule int) ([]Event, error) {
	var recs []eventRecord
	if err := l.db.Where("rule = ?", rule).Order("seq asc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("ledger: find changes for rule %d: %w", rule, err)
	}
	events := make([]Event, 0, len(recs))
	for _, rec := range recs {
		ev, err := rec.event()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// DeleteEntry removes the event recorded under id along with its snapshot.
// Deleting an unknown id is not an error.
func (l *Ledger) DeleteEntry(id string) error {
	if err := l.db.Where("event_id = ?", id).Delete(&eventRecord{}).Error; err != nil {
		return fmt.Errorf("ledger: delete event %s: %w", id, err)
	}
	if err := os.Remove(l.snapshotPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ledger: delete snapshot %s: %w", id, err)
	}
	return nil
}

// ClearRule deletes every event recorded for rule.
func (l *Ledger) ClearRule(rule int) error {
	events, err := l.FindRuleChanges(rule)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := l.DeleteEntry(ev.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r eventRecord) event() (Event, error) {
	p, err := decodePayload(Kind(r.Kind), r.Payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         r.EventID,
		Rule:       r.Rule,
		Payload:    p,
		RecordedAt: r.RecordedAt,
	}, nil
}
