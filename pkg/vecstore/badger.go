package vecstore

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dgraph-io/badger/v4"
)

// Key prefix for the raw-vector log. Single byte for efficiency.
const prefixVector = byte(0x01)

// BadgerStore is a Store whose rows are also written to a durable
// raw-vector log in BadgerDB. Reads are served from the in-memory arena;
// the log only exists so a dataset survives restarts without re-parsing
// its source files. The index structure itself is never persisted.
//
// Key Structure:
//   - Rows: 0x01 + big-endian row id -> little-endian float32 row
//
// Example:
//
//	store, err := vecstore.NewBadgerStore(128, vecstore.BadgerOptions{
//		DataDir: "./data/vectors",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
type BadgerStore struct {
	db     *badger.DB
	arena  *Flat
	closed bool
}

// BadgerOptions configures the Badger-backed store.
type BadgerOptions struct {
	// DataDir is the directory for the vector log. Required unless
	// InMemory is set.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode. Useful for testing.
	// Data is not persisted.
	InMemory bool

	// SyncWrites forces fsync after each write. Slower but more
	// durable.
	SyncWrites bool
}

// NewBadgerStore opens (or creates) a Badger-backed store for rows of
// the given dimension. Rows already in the log are replayed into the
// arena, so Len reflects the reopened dataset.
func NewBadgerStore(dim int, opts BadgerOptions) (*BadgerStore, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir).WithLogger(nil)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector log: %w", err)
	}

	s := &BadgerStore{db: db, arena: NewFlat(dim)}
	if err := s.replay(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// replay loads every logged row into the arena. Keys are big-endian row
// ids, so iteration order is append order.
func (s *BadgerStore) replay() error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte{prefixVector}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				row, err := decodeRow(s.arena.dim, val)
				if err != nil {
					return err
				}
				_, err = s.arena.Append(row)
				return err
			})
			if err != nil {
				return fmt.Errorf("failed to replay vector log: %w", err)
			}
		}
		return nil
	})
}

// Dim returns the row dimension.
func (s *BadgerStore) Dim() int { return s.arena.Dim() }

// Len returns the number of rows held.
func (s *BadgerStore) Len() int { return s.arena.Len() }

// Append logs v and copies it into the arena, returning its row id.
func (s *BadgerStore) Append(v []float32) (uint32, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if len(v) != s.arena.dim {
		return 0, ErrDimensionMismatch
	}

	id := uint32(s.arena.Len())
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(rowKey(id), encodeRow(v))
	})
	if err != nil {
		return 0, fmt.Errorf("failed to log vector %d: %w", id, err)
	}

	return s.arena.Append(v)
}

// Vector returns the row with the given id from the arena.
func (s *BadgerStore) Vector(id uint32) []float32 {
	return s.arena.Vector(id)
}

// Close flushes and closes the underlying BadgerDB.
func (s *BadgerStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.arena.Close()
	return s.db.Close()
}

func rowKey(id uint32) []byte {
	key := make([]byte, 5)
	key[0] = prefixVector
	binary.BigEndian.PutUint32(key[1:], id)
	return key
}

func encodeRow(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeRow(dim int, buf []byte) ([]float32, error) {
	if len(buf) != 4*dim {
		return nil, fmt.Errorf("logged row has %d bytes, want %d", len(buf), 4*dim)
	}
	row := make([]float32, dim)
	for i := range row {
		row[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return row, nil
}
