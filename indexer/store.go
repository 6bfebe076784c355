package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"escrowchain/core/events"
	"escrowchain/native/escrow"
)

// Store persists committed escrow events and a per-escrow summary. It is an
// events.Emitter so the host can fan events into it after commit.
type Store struct {
	db     *gorm.DB
	log    *slog.Logger
	now    func() time.Time
	mu     sync.Mutex
	seq    uint64
	failed uint64
}

// Open connects to dsn. postgres:// and postgresql:// DSNs use Postgres;
// anything else is handed to SQLite.
func Open(dsn string, log *slog.Logger) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("indexer: dsn required")
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open: %w", err)
	}
	return New(db, log)
}

// New wraps an open gorm handle, migrating the schema.
func New(db *gorm.DB, log *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer: db required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	var last EventRecord
	err := db.Order("seq desc").Limit(1).Take(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("indexer: load sequence: %w", err)
	}
	return &Store{db: db, log: log.With("component", "indexer"), now: time.Now, seq: last.Seq}, nil
}

// Emit implements events.Emitter. Failures are logged and counted; they
// never reach the caller since the event is already committed.
func (s *Store) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	if err := s.Record(evt); err != nil {
		s.mu.Lock()
		s.failed++
		s.mu.Unlock()
		s.log.Error("index event failed", "event", evt.EventType(), "error", err)
	}
}

// Failed reports how many events could not be indexed.
func (s *Store) Failed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Record stores evt and updates the escrow summary in one transaction.
func (s *Store) Record(evt events.Event) error {
	payload := events.Payload(evt)
	if payload == nil {
		return fmt.Errorf("indexer: event %s has no payload", evt.EventType())
	}
	attrs, err := json.Marshal(payload.Attributes)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	record := EventRecord{
		ID:         uuid.New(),
		Seq:        s.seq + 1,
		EscrowID:   payload.Attr("id"),
		Type:       payload.Type,
		Attributes: string(attrs),
		CreatedAt:  now,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		return applySummary(tx, payload.Type, payload.Attributes, now)
	})
	if err != nil {
		return err
	}
	s.seq = record.Seq
	return nil
}

func applySummary(tx *gorm.DB, eventType string, attrs map[string]string, now time.Time) error {
	id := attrs["id"]
	if id == "" {
		return nil
	}
	switch eventType {
	case escrow.EventTypeEscrowCreated:
		summary := EscrowRecord{
			ID:        id,
			Buyer:     attrs["buyer"],
			Seller:    attrs["seller"],
			Private:   attrs["private"] == "true",
			Status:    StatusOpen,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&summary).Error
	case escrow.EventTypeEscrowDisputed:
		return tx.Model(&EscrowRecord{}).Where("id = ?", id).Updates(map[string]any{
			"status":     StatusDisputed,
			"arbitrator": attrs["arbitrator"],
			"updated_at": now,
		}).Error
	case escrow.EventTypeEscrowResolved:
		return tx.Model(&EscrowRecord{}).Where("id = ?", id).Updates(map[string]any{
			"status":     StatusResolved,
			"outcome":    attrs["outcome"],
			"updated_at": now,
		}).Error
	}
	return nil
}

// Event is an indexed event with decoded attributes.
type Event struct {
	Seq        uint64            `json:"seq"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// EventsFor lists the events of an escrow in commit order. escrowID is the
// lowercase hex id without 0x.
func (s *Store) EventsFor(escrowID string) ([]Event, error) {
	var records []EventRecord
	if err := s.db.Where("escrow_id = ?", escrowID).Order("seq asc").Find(&records).Error; err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(records))
	for _, record := range records {
		attrs := map[string]string{}
		if err := json.Unmarshal([]byte(record.Attributes), &attrs); err != nil {
			return nil, fmt.Errorf("indexer: decode event %d: %w", record.Seq, err)
		}
		out = append(out, Event{Seq: record.Seq, Type: record.Type, Attributes: attrs, CreatedAt: record.CreatedAt})
	}
	return out, nil
}

// EscrowsFor lists escrows where party is buyer, seller or arbitrator,
// newest first. party is lowercase hex without 0x.
func (s *Store) EscrowsFor(party string, limit int) ([]EscrowRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var records []EscrowRecord
	err := s.db.Where("buyer = ? OR seller = ? OR arbitrator = ?", party, party, party).
		Order("created_at desc").Order("id asc").Limit(limit).Find(&records).Error
	return records, err
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
