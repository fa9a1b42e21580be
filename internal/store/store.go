// Package store implements the Persistence Store: a single transactional
// local database holding projects, sessions, buffer snapshots, and notes.
// Grounded on llm-proxy's internal/database package (gorm + sqlite, WAL
// mode, AutoMigrate-on-Init), generalized to this system's tables.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store wraps the gorm handle. It satisfies buffer.PersistenceStore.
type Store struct {
	db *gorm.DB
}

// Open creates (if absent) and migrates the sqlite database at path. The
// only fatal startup condition in the whole system is failure to initialize
// this store — callers should exit non-zero if Open fails, per the error
// handling design's propagation policy.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: get sql.DB: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("store: set WAL mode: %w", err)
	}

	if err := db.AutoMigrate(&Project{}, &SessionRecord{}, &BufferRecord{}, &Note{}); err != nil {
		return nil, fmt.Errorf("store: auto-migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveBufferSnapshot implements buffer.PersistenceStore: an idempotent
// full-content upsert keyed by session id.
func (s *Store) SaveBufferSnapshot(sessionID, content string, totalLines int) error {
	rec := BufferRecord{
		SessionID:  sessionID,
		Content:    content,
		TotalLines: totalLines,
		LastFlush:  time.Now(),
	}
	return s.db.Save(&rec).Error
}

// LoadBufferSnapshot implements buffer.PersistenceStore.
func (s *Store) LoadBufferSnapshot(sessionID string) (content string, totalLines int, found bool, err error) {
	var rec BufferRecord
	result := s.db.First(&rec, "session_id = ?", sessionID)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return "", 0, false, nil
		}
		return "", 0, false, result.Error
	}
	return rec.Content, rec.TotalLines, true, nil
}

// DeleteBuffer removes a session's persisted buffer snapshot, if any.
func (s *Store) DeleteBuffer(sessionID string) error {
	return s.db.Delete(&BufferRecord{}, "session_id = ?", sessionID).Error
}

// UpsertSession writes or updates a session's persisted shadow record.
func (s *Store) UpsertSession(rec SessionRecord) error {
	return s.db.Save(&rec).Error
}

// GetSession loads a session's persisted shadow record.
func (s *Store) GetSession(sessionID string) (SessionRecord, bool, error) {
	var rec SessionRecord
	result := s.db.First(&rec, "id = ?", sessionID)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return SessionRecord{}, false, nil
		}
		return SessionRecord{}, false, result.Error
	}
	return rec, true, nil
}

// ListSessionRecordsByProject returns every persisted session shadow for a
// project, in the store's own row shape.
func (s *Store) ListSessionRecordsByProject(projectID string) ([]SessionRecord, error) {
	var recs []SessionRecord
	if err := s.db.Where("project_id = ?", projectID).Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// ListAllSessionRecords returns every persisted session shadow.
func (s *Store) ListAllSessionRecords() ([]SessionRecord, error) {
	var recs []SessionRecord
	if err := s.db.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// DeleteSession removes a session's persisted shadow and its buffer
// snapshot together.
func (s *Store) DeleteSession(sessionID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&SessionRecord{}, "id = ?", sessionID).Error; err != nil {
			return err
		}
		return tx.Delete(&BufferRecord{}, "session_id = ?", sessionID).Error
	})
}

// EncodeDescriptor serializes a shellDescriptor-shaped value to the JSON
// blob stored in SessionRecord.Descriptor. Kept here (rather than in
// internal/session) so the store owns its own on-disk encoding.
func EncodeDescriptor(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("store: encode descriptor: %w", err)
	}
	return string(b), nil
}

// DecodeDescriptor reverses EncodeDescriptor into dst.
func DecodeDescriptor(blob string, dst any) error {
	if blob == "" {
		return nil
	}
	return json.Unmarshal([]byte(blob), dst)
}

// UpsertProject writes or updates a project record.
func (s *Store) UpsertProject(p Project) error {
	return s.db.Save(&p).Error
}

// GetProject loads a project by id.
func (s *Store) GetProject(id string) (Project, bool, error) {
	var p Project
	result := s.db.First(&p, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return Project{}, false, nil
		}
		return Project{}, false, result.Error
	}
	return p, true, nil
}
