package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRecord is one committed escrow event.
type EventRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq        uint64    `gorm:"uniqueIndex;not null"`
	EscrowID   string    `gorm:"index;size:64"`
	Type       string    `gorm:"index;size:64"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time
}

// EscrowRecord summarises the latest known state of an escrow.
type EscrowRecord struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	Buyer      string    `gorm:"index;size:40" json:"buyer"`
	Seller     string    `gorm:"index;size:40" json:"seller"`
	Arbitrator string    `gorm:"index;size:40" json:"arbitrator,omitempty"`
	Private    bool      `json:"private"`
	Status     string    `gorm:"index;size:16" json:"status"`
	Outcome    string    `gorm:"size:16" json:"outcome,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Escrow statuses tracked by the indexer.
const (
	StatusOpen     = "open"
	StatusDisputed = "disputed"
	StatusResolved = "resolved"
)

// AutoMigrate performs all schema migrations for the indexer.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{}, &EscrowRecord{})
}
