// Package recoverystore is a bbolt-backed overflow for InputMap's
// recovery index (spec.md §4.7), so a replication window larger than
// memory can still serve peer retransmits. Grounded directly on
// node/store/db.go's DB: a single bolt.DB wrapper with one bucket per
// concern, opened with a short timeout and CreateBucketIfNotExists at
// open time.
package recoverystore

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/codership/galera-sub007/inputmap"
)

var bucketRecovery = []byte("recovery_by_source_seqno")

// Store persists InputMap recovery-index entries in a single bucket,
// keyed by (source_index, seqno).
type Store struct {
	db *bolt.DB
}

// Open creates or opens a bbolt-backed store at path (the containing
// directory is created if missing).
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}
	s := &Store{db: db}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRecovery)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// recoveryKey packs (source_index, seqno) into a fixed 12-byte bucket key
// so bbolt's sorted iteration gives a natural per-source, seqno-ascending
// order for DeleteUpTo's range scan.
func recoveryKey(src int, seq int64) []byte {
	k := make([]byte, 12)
	binary.BigEndian.PutUint32(k[0:4], uint32(src))
	binary.BigEndian.PutUint64(k[4:12], uint64(seq))
	return k
}

// Put stores entry e for (src, seq), overwriting any prior value.
func (s *Store) Put(src int, seq int64, e *inputmap.Entry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRecovery).Put(recoveryKey(src, seq), encodeEntry(e))
	})
}

// Get returns the entry stored for (src, seq), if any.
func (s *Store) Get(src int, seq int64) (*inputmap.Entry, bool, error) {
	var e *inputmap.Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketRecovery).Get(recoveryKey(src, seq))
		if v == nil {
			return nil
		}
		decoded, err := decodeEntry(src, seq, v)
		if err != nil {
			return err
		}
		e = decoded
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return e, e != nil, nil
}

// DeleteUpTo removes every stored entry for src with seqno ≤ seq
// (spec.md §4.7's discard-on-safe-seq-advance).
func (s *Store) DeleteUpTo(src int, seq int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecovery)
		c := b.Cursor()
		prefix := make([]byte, 4)
		binary.BigEndian.PutUint32(prefix, uint32(src))
		var toDelete [][]byte
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			entrySeq := int64(binary.BigEndian.Uint64(k[4:12]))
			if entrySeq <= seq {
				toDelete = append(toDelete, append([]byte(nil), k...))
			}
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// encodeEntry renders an Entry as order-byte + payload bytes; src/seq
// live in the bucket key, not the value.
func encodeEntry(e *inputmap.Entry) []byte {
	out := make([]byte, 0, 1+len(e.Payload))
	out = append(out, byte(e.Order))
	out = append(out, e.Payload...)
	return out
}

func decodeEntry(src int, seq int64, v []byte) (*inputmap.Entry, error) {
	if len(v) < 1 {
		return nil, fmt.Errorf("recoverystore: truncated entry value")
	}
	payload := append([]byte(nil), v[1:]...)
	return &inputmap.Entry{
		Src:     src,
		Seq:     seq,
		Order:   inputmap.Order(v[0]),
		Payload: payload,
	}, nil
}
