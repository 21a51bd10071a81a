package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"
)

// badgerKeyPrefix namespaces tree rows inside the badger keyspace.
const badgerKeyPrefix = "tree:"

// BadgerKV stores rows in an embedded BadgerDB.
type BadgerKV struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a badger database at dir.
func OpenBadger(dir string) (*BadgerKV, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(badgerLogger{}))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %s: %w", dir, err)
	}
	return NewBadgerKV(db), nil
}

// NewBadgerKV wraps an open database.
func NewBadgerKV(db *badger.DB) *BadgerKV {
	return &BadgerKV{db: db}
}

func (b *BadgerKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (b *BadgerKV) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entries []Entry
	err := b.db.View(func(txn *badger.Txn) error {
		p := []byte(badgerKeyPrefix + prefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = p
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			entries = append(entries, Entry{
				Key:   strings.TrimPrefix(string(item.KeyCopy(nil)), badgerKeyPrefix),
				Value: value,
			})
		}
		return nil
	})
	return entries, err
}

func (b *BadgerKV) Apply(ctx context.Context, ops []Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			key := []byte(badgerKeyPrefix + op.Key)
			if op.Delete {
				if err := txn.Delete(key); err != nil {
					return err
				}
				continue
			}
			if err := txn.Set(key, op.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

// DB exposes the database for inspection tools.
func (b *BadgerKV) DB() *badger.DB { return b.db }

func (b *BadgerKV) Close() error { return b.db.Close() }

// badgerLogger routes badger's internal logging through zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	log.Error().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	log.Warn().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	log.Debug().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	log.Trace().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}
