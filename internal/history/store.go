package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"go.etcd.io/bbolt"

	"github.com/torosent/vuramp/internal/output"
)

const bucketRuns = "runs"

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Entry is the listing view of a stored run.
type Entry struct {
	RunID      string        `json:"run_id"`
	Name       string        `json:"name,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	VUsMax     int           `json:"vus_max"`
	Passed     bool          `json:"passed"`
	Requests   int64         `json:"requests"`
	Iterations int64         `json:"iterations"`
}

// Store keeps summary documents in a bbolt database keyed by run id.
// Run ids are ULIDs, so key order is chronological.
type Store struct {
	db *bbolt.DB
}

// NewRunID returns a fresh ULID string.
func NewRunID() string {
	return ulid.Make().String()
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save stores doc under its run id.
func (s *Store) Save(doc output.Document) error {
	if _, err := ulid.ParseStrict(doc.RunID); err != nil {
		return fmt.Errorf("run id %q: %w", doc.RunID, err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketRuns)).Put([]byte(doc.RunID), data)
	})
}

// List returns stored runs, newest first. A limit of zero lists everything.
func (s *Store) List(limit int) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var doc output.Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("decode run %s: %w", k, err)
			}
			entries = append(entries, entryOf(doc))
			if limit > 0 && len(entries) == limit {
				break
			}
		}
		return nil
	})
	return entries, err
}

// Get returns the stored document for id.
func (s *Store) Get(id string) (output.Document, error) {
	var doc output.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketRuns)).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(v, &doc)
	})
	return doc, err
}

func entryOf(doc output.Document) Entry {
	e := Entry{
		RunID:     doc.RunID,
		Name:      doc.Name,
		StartedAt: doc.StartedAt,
		Duration:  time.Duration(doc.DurationMs * float64(time.Millisecond)),
		VUsMax:    doc.VUsMax,
		Passed:    doc.Passed,
	}
	if m, ok := doc.Metrics["http_reqs"]; ok {
		e.Requests = int64(m.Values["count"])
	}
	if m, ok := doc.Metrics["iterations"]; ok {
		e.Iterations = int64(m.Values["count"])
	}
	return e
}

// Sink records every emitted summary in a Store.
type Sink struct {
	Store *Store
}

func (s Sink) Name() string { return "history" }

func (s Sink) Write(_ string, doc output.Document) error {
	return s.Store.Save(doc)
}
