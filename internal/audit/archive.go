package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/finstream/finstream/pkg/models"
)

// Record is the archived row for one audit event.
type Record struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	EventID   string `gorm:"uniqueIndex;size:64"`
	EventType string `gorm:"index;size:64"`
	Service   string `gorm:"index;size:64"`
	UserID    string `gorm:"index;size:64"`
	Timestamp time.Time
	Data      string `gorm:"type:text"`
}

// TableName keeps the archive table stable across gorm naming changes.
func (Record) TableName() string { return "audit_events" }

// Archive is the optional durable sink behind the in-memory window. Append
// failures are the caller's to log; they must never fail event storage.
type Archive struct {
	db *gorm.DB
}

// OpenArchive opens (or creates) the sqlite archive at path.
func OpenArchive(path string) (*Archive, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit archive at %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate audit archive: %w", err)
	}
	return &Archive{db: db}, nil
}

// Append writes one event to the archive. Duplicate eventIDs (redelivery) are
// ignored.
func (a *Archive) Append(event models.AuditEvent) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	record := Record{
		EventID:   event.EventID,
		EventType: event.EventType,
		Service:   event.Service,
		UserID:    event.UserID,
		Timestamp: event.Timestamp,
		Data:      string(data),
	}
	result := a.db.Where("event_id = ?", event.EventID).FirstOrCreate(&record)
	if result.Error != nil {
		return fmt.Errorf("failed to archive audit event: %w", result.Error)
	}
	return nil
}

// Close releases the underlying database handle.
func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
