package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DatabaseFile is the sqlite file used when no DSN is configured.
const DatabaseFile = "pano.db"

type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// ErrNotFound is returned when no record matches an ID.
var ErrNotFound = errors.New("record not found")

// Record tracks one panorama run.
type Record struct {
	ID        string `gorm:"primaryKey;size:36"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Input     string
	PanoPath  string
	ThumbPath string

	Interval      int
	FramesRead    int
	FramesSampled int
	Width         int
	Height        int
	ElapsedMs     int64

	Status Status `gorm:"index;size:16"`
	// Outcome is the failure category, "ok" on success.
	Outcome string
	// StitchStatus is the stitcher's status code, when it was reached.
	StitchStatus *int
	Error        string

	HaveThumb bool
	UploadKey string
}

// NewRecord returns a running record for input with a fresh ID.
func NewRecord(input string, interval int) *Record {
	return &Record{
		ID:       uuid.NewString(),
		Input:    input,
		Interval: interval,
		Status:   StatusRunning,
	}
}

type Store struct {
	db *gorm.DB
}

// Open connects to a "mysql" or "sqlite" database and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		if dsn == "" {
			dsn = DatabaseFile
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	log.Infof("Record store opened (%v)", driver)
	return &Store{db: db}, nil
}

// DB exposes the connection for other packages keeping their own tables.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Create(r *Record) error {
	return s.db.Create(r).Error
}

func (s *Store) Update(r *Record) error {
	return s.db.Save(r).Error
}

func (s *Store) Get(id string) (*Record, error) {
	r := &Record{}
	if err := s.db.Where("id = ?", id).First(r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

// Filter narrows List. The zero value matches everything.
type Filter struct {
	Status Status
	Limit  int
}

// List returns records newest first.
func (s *Store) List(f Filter) ([]*Record, error) {
	q := s.db.Order("created_at desc")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var records []*Record
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Delete removes the record and its files.
func (s *Store) Delete(id string) error {
	r, err := s.Get(id)
	if err != nil {
		return err
	}
	for _, p := range []string{r.PanoPath, r.ThumbPath} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warnf("Failed to remove %v: %v", p, err)
		}
	}
	if err := s.db.Delete(r).Error; err != nil {
		return err
	}
	log.Infof("Deleted record %v (%v)", r.ID, r.Input)
	return nil
}

func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
