// Package plancache stores EXPLAIN payloads in BadgerDB so repeated runs over
// the same statements skip the database round trip.
package plancache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mickamy/queryguard/internal/model"
	"github.com/mickamy/queryguard/internal/parser"
)

const keyPrefix = "plan/"

// Cache is a keyed store of raw EXPLAIN documents.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// Options configures the cache.
type Options struct {
	// InMemory keeps the data in memory only; Path is ignored.
	InMemory bool
	// TTL expires entries; zero keeps them forever.
	TTL time.Duration
}

// Open opens or creates a cache at path.
func Open(path string, opts Options) (*Cache, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if strings.TrimSpace(path) == "" {
			return nil, errors.New("plancache: empty path")
		}
		bopts = badger.DefaultOptions(path)
	}
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("plancache: open: %w", err)
	}
	return &Cache{db: db, ttl: opts.TTL}, nil
}

// Key derives the cache key for a statement under a given database.
func Key(dsnScope, sql string) []byte {
	sum := sha256.Sum256([]byte(dsnScope + "\x00" + strings.TrimSpace(sql)))
	return []byte(keyPrefix + hex.EncodeToString(sum[:]))
}

// Get returns the cached payload for key. The boolean is false on a miss.
func (c *Cache) Get(key []byte) ([]byte, bool, error) {
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("plancache: get: %w", err)
	}
	return out, true, nil
}

// Put stores payload under key.
func (c *Cache) Put(key, payload []byte) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, payload)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("plancache: put: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Source returns raw EXPLAIN documents; runner.Explainer satisfies it.
type Source interface {
	ExplainJSON(ctx context.Context, sql string) ([]byte, error)
}

// Provider serves plans from the cache and falls back to Source on a miss.
type Provider struct {
	cache  *Cache
	source Source
	scope  string
	logger log.Logger
}

// NewProvider wraps source. scope separates entries for different databases.
func NewProvider(cache *Cache, source Source, scope string, logger log.Logger) *Provider {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Provider{cache: cache, source: source, scope: scope, logger: log.With(logger, "component", "plancache")}
}

// ExplainJSON returns the cached document or fetches and stores it.
func (p *Provider) ExplainJSON(ctx context.Context, sql string) ([]byte, error) {
	key := Key(p.scope, sql)
	payload, ok, err := p.cache.Get(key)
	if err != nil {
		level.Warn(p.logger).Log("msg", "cache read failed", "err", err)
	}
	if ok {
		level.Debug(p.logger).Log("msg", "cache hit", "key", string(key))
		return payload, nil
	}

	payload, err = p.source.ExplainJSON(ctx, sql)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Put(key, payload); err != nil {
		level.Warn(p.logger).Log("msg", "cache write failed", "err", err)
	}
	return payload, nil
}

// Explain returns the parsed plan for sql.
func (p *Provider) Explain(ctx context.Context, sql string) (*model.Explain, error) {
	payload, err := p.ExplainJSON(ctx, sql)
	if err != nil {
		return nil, err
	}
	plan, err := parser.ParseBytes(payload)
	if err != nil {
		return nil, fmt.Errorf("plancache: %w", err)
	}
	return plan, nil
}
