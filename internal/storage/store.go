package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	sourcesBucket = []byte("sources")
	runsBucket    = []byte("runs")
)

// maxRuns bounds the run log; older records are dropped on insert.
const maxRuns = 200

type Store struct {
	db *bolt.DB
}

func NewStore(dbPath string, timeout time.Duration) (*Store, error) {
	if timeout <= 0 {
		timeout = 1 * time.Second
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{sourcesBucket, runsBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveSource(state *SourceState) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sourcesBucket)
		data, err := json.Marshal(state)
		if err != nil {
			return err
		}
		return b.Put([]byte(state.URL), data)
	})
}

// GetSource returns the remembered state for url. ok is false when the
// source has never been fetched.
func (s *Store) GetSource(url string) (state *SourceState, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(sourcesBucket).Get([]byte(url))
		if data == nil {
			return nil
		}
		var st SourceState
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Errorf("decoding source %s: %w", url, err)
		}
		state, ok = &st, true
		return nil
	})
	return state, ok, err
}

// GetAllSources returns every known source ordered by URL.
func (s *Store) GetAllSources() ([]*SourceState, error) {
	var states []*SourceState
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(sourcesBucket).ForEach(func(_ []byte, v []byte) error {
			var st SourceState
			if err := json.Unmarshal(v, &st); err != nil {
				return nil
			}
			states = append(states, &st)
			return nil
		})
	})
	sort.Slice(states, func(i, j int) bool {
		return states[i].URL < states[j].URL
	})
	return states, err
}

func (s *Store) DeleteSource(url string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sourcesBucket).Delete([]byte(url))
	})
}

func runKey(r *RunRecord) []byte {
	return []byte(fmt.Sprintf("%020d-%s", r.StartedAt.UnixNano(), r.ID))
}

func (s *Store) SaveRun(run *RunRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(runsBucket)
		data, err := json.Marshal(run)
		if err != nil {
			return err
		}
		if err := b.Put(runKey(run), data); err != nil {
			return err
		}

		count := 0
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			count++
		}
		excess := count - maxRuns
		for k, _ := c.First(); k != nil && excess > 0; k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
			excess--
		}
		return nil
	})
}

// RecentRuns returns up to limit run records, newest first.
func (s *Store) RecentRuns(limit int) ([]*RunRecord, error) {
	var runs []*RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(runsBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var run RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				continue
			}
			runs = append(runs, &run)
		}
		return nil
	})
	return runs, err
}
