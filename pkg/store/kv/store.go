// Package kv is the BadgerDB adapter. It mirrors every envelope under
// log:<id> and provides the shared key-value state for the circuit breaker,
// rate limiter, idempotency records, counter persistence, and the vector
// index. Key schemas are colocated here so the layout is visible in one
// place.
package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/aquilhq/actionlog/internal/logger"
	"github.com/aquilhq/actionlog/pkg/models"
)

// Key prefixes for everything stored in the KV database.
const (
	// PrefixLog holds mirrored envelopes: log:<id> -> envelope JSON.
	PrefixLog = "log:"

	// PrefixBreaker holds circuit breaker state: circuit_breaker:<store>.
	PrefixBreaker = "circuit_breaker:"

	// PrefixRateLimit holds token buckets: rate_limit:<identity>.
	PrefixRateLimit = "rate_limit:"

	// PrefixIdempotency holds replay records: idempotency:<key>.
	PrefixIdempotency = "idempotency:"

	// PrefixVector holds embedding entries: vec:<id>.
	PrefixVector = "vec:"

	// KeyCounters holds the persisted metrics counter map.
	KeyCounters = "metrics:counters"
)

// Config configures the BadgerDB store.
type Config struct {
	// Path is the directory for the database files. Ignored when InMemory
	// is set.
	Path string

	// InMemory runs without disk persistence (tests, throwaway envs).
	InMemory bool

	// LogTTL is applied to mirrored log entries. Zero means entries never
	// expire. Control-state keys (breaker, rate limit, counters) manage
	// their own lifetimes.
	LogTTL time.Duration
}

// Store wraps a BadgerDB database.
type Store struct {
	db     *badger.DB
	logTTL time.Duration
}

// New opens (or creates) the BadgerDB database.
func New(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("kv store requires a path")
		}
		if err := os.MkdirAll(cfg.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create kv directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open kv database: %w", err)
	}

	return &Store{db: db, logTTL: cfg.LogTTL}, nil
}

// Get returns the value stored under key, or models.ErrRecordNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, models.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	return value, nil
}

// Set stores value under key. A positive ttl expires the entry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// SetNX stores value under key only if the key is absent. It returns the
// existing value when the key was already present (stored == false). The
// check and the write share one transaction, so concurrent writers observe
// a single winner.
func (s *Store) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (existing []byte, stored bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		item, getErr := txn.Get([]byte(key))
		if getErr == nil {
			existing, getErr = item.ValueCopy(nil)
			return getErr
		}
		if !errors.Is(getErr, badger.ErrKeyNotFound) {
			return getErr
		}

		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		if setErr := txn.SetEntry(entry); setErr != nil {
			return setErr
		}
		stored = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return existing, stored, nil
}

// UpdateEntry applies fn to the current value (nil when absent) and writes
// the result back in the same transaction. fn returning (nil, nil) deletes
// the key. The read-modify-write is atomic within this process.
func (s *Store) UpdateEntry(ctx context.Context, key string, ttl time.Duration, fn func(old []byte) ([]byte, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		var old []byte
		item, err := txn.Get([]byte(key))
		if err == nil {
			old, err = item.ValueCopy(nil)
			if err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		updated, err := fn(old)
		if err != nil {
			return err
		}
		if updated == nil {
			if old == nil {
				return nil
			}
			return txn.Delete([]byte(key))
		}

		entry := badger.NewEntry([]byte(key), updated)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Has reports whether key exists.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// ListKeys returns all keys with the given prefix. Values are not fetched.
func (s *Store) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		p := []byte(prefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = p
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return keys, nil
}

// Scan visits every key/value pair under prefix. fn returning false stops
// the scan early.
func (s *Store) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) (bool, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.View(func(txn *badger.Txn) error {
		p := []byte(prefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = p

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			var cont bool
			err := item.Value(func(val []byte) error {
				var fnErr error
				cont, fnErr = fn(string(item.Key()), val)
				return fnErr
			})
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		return nil
	})
}

// Healthcheck verifies the database is open and usable.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return fmt.Errorf("kv database is closed")
	}
	return s.db.View(func(txn *badger.Txn) error { return nil })
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// badgerLogger routes BadgerDB's internal logging through the service
// logger. Badger is chatty at INFO, so its info output lands at debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logger.Error(fmt.Sprintf("badger: "+format, args...))
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logger.Warn(fmt.Sprintf("badger: "+format, args...))
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf("badger: "+format, args...))
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf("badger: "+format, args...))
}
