// Package checkpoint persists the index of the next query to run so an
// interrupted batch can resume where it stopped.
package checkpoint

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("checkpoints")

// Store keeps one resume index per batch key in a bbolt file.
type Store struct {
	key []byte
	db  *bolt.DB
	mu  sync.Mutex
}

// Open opens (or creates) the checkpoint database at path. key identifies the
// batch; see Key.
func Open(path, key string) (*Store, error) {
	if key == "" {
		return nil, fmt.Errorf("checkpoint: empty key")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("checkpoint: create directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: create bucket: %w", err)
	}

	return &Store{key: []byte(key), db: db}, nil
}

// Resume returns the index of the first query that has not completed, or 0
// when nothing was saved.
func (s *Store) Resume(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var next int
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get(s.key)
		if v == nil {
			return nil
		}
		if len(v) != 8 {
			return fmt.Errorf("corrupt value of %d bytes", len(v))
		}
		next = int(binary.BigEndian.Uint64(v))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("checkpoint: resume: %w", err)
	}
	return next, nil
}

// Save records that every query before next has completed.
func (s *Store) Save(ctx context.Context, next int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if next < 0 {
		return fmt.Errorf("checkpoint: negative index %d", next)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, uint64(next))
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(s.key, v)
	})
	if err != nil {
		return fmt.Errorf("checkpoint: save: %w", err)
	}
	return nil
}

// Clear forgets the batch, so the next run starts from the first query.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(s.key)
	})
	if err != nil {
		return fmt.Errorf("checkpoint: clear: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key derives a stable batch key from the query list and target domains, so a
// changed batch never resumes from another batch's index.
func Key(queries, domains []string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(queries, "\n")))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(domains, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}
