package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/young1lin/postfetch/internal/models"
	"github.com/young1lin/postfetch/pkg/logger"
)

var bucketName = []byte("fetches")

// ErrNotFound is returned by Get for unknown IDs
var ErrNotFound = errors.New("fetch not found")

// Archive records completed fetches in a BBolt file. It is write-through
// history only and is never consulted before a fetch.
type Archive struct {
	db *bbolt.DB
}

// NewArchive opens (or creates) the archive at path
func NewArchive(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	// Another process holding the file fails the open instead of blocking
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("fetch archive opened", zap.String("path", path))
	return &Archive{db: db}, nil
}

// Save stores record under its ID. IDs are time-ordered, so key order is
// fetch order.
func (a *Archive) Save(record *models.ArchivedFetch) error {
	if record.ID == "" {
		return errors.New("archived fetch has no ID")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	return a.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(record.ID), data)
	})
}

// Get retrieves a fetch by ID
func (a *Archive) Get(id string) (*models.ArchivedFetch, error) {
	var record models.ArchivedFetch

	err := a.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketName).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// List returns up to limit fetches, newest first. A non-positive limit returns all.
func (a *Archive) List(limit int) ([]models.ArchivedFetch, error) {
	var records []models.ArchivedFetch

	err := a.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var record models.ArchivedFetch
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("corrupt archive entry %s: %w", k, err)
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Close closes the database
func (a *Archive) Close() error {
	return a.db.Close()
}
