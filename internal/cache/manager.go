// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"

	"github.com/staranto/tennisbet/internal/store"
)

// Producer computes the rows to cache. It knows nothing about caching.
type Producer func(ctx context.Context) (store.Rows, error)

// Opener acquires a store for the duration of one Call.
type Opener func(ctx context.Context) (store.TableStore, error)

// Manager runs producers through the table store.
type Manager struct {
	open     Opener
	now      func() time.Time
	disabled bool
	locks    keyedMutex
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithDisabled makes every Call recompute, as if forced. The result is still
// written so a later enabled run can reuse it.
func WithDisabled(disabled bool) Option {
	return func(m *Manager) { m.disabled = disabled }
}

// NewManager returns a Manager that opens a store through open for every call.
func NewManager(open Opener, opts ...Option) *Manager {
	m := &Manager{
		open: open,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewManagerForDSN is NewManager over store.Open(dsn).
func NewManagerForDSN(dsn string, opts ...Option) *Manager {
	return NewManager(func(ctx context.Context) (store.TableStore, error) {
		return store.Open(ctx, dsn)
	}, opts...)
}

// Call returns the rows cached under table when policy says they are fresh,
// and otherwise runs producer, stamps its rows with created_at and replaces
// the table. force skips the freshness check.
//
// Producer and store errors are returned unchanged. A created_at that does not
// parse fails the call with a *MalformedTimestampError.
//
// Calls for the same table are serialized within the process.
func (m *Manager) Call(
	ctx context.Context,
	table string,
	producer Producer,
	policy Policy,
	force bool,
) (store.Rows, error) {
	if err := store.ValidateName(table); err != nil {
		return nil, err
	}
	if producer == nil {
		return nil, fmt.Errorf("cache: nil producer for %s", table)
	}
	if policy == nil {
		return nil, fmt.Errorf("cache: nil policy for %s", table)
	}

	unlock := m.locks.lock(table)
	defer unlock()

	ts, err := m.open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := ts.Close(); cerr != nil {
			log.WithError(cerr).Warnf("failed to close store after %s", table)
		}
	}()

	logger := log.WithFields(log.Fields{"table": table, "policy": policy.String()})

	switch {
	case force:
		logger.Debug("cache bypassed by force")
	case m.disabled:
		logger.Debug("cache disabled")
	default:
		rows, hit, err := m.lookup(ctx, ts, table, policy, logger)
		if err != nil {
			return nil, err
		}
		if hit {
			return rows, nil
		}
	}

	return m.fill(ctx, ts, table, producer, logger)
}

// lookup serves the stored table if it exists and is fresh. A missing table or
// one without rows is a miss, not an error.
func (m *Manager) lookup(
	ctx context.Context,
	ts store.TableStore,
	table string,
	policy Policy,
	logger *log.Entry,
) (store.Rows, bool, error) {
	ok, err := ts.Exists(ctx, table)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		logger.Debug("cache miss: table absent")
		return nil, false, nil
	}

	raw, err := ts.MaxCreatedAt(ctx, table)
	if errors.Is(err, store.ErrNotFound) {
		logger.Debug("cache miss: table empty")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	createdAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, false, &MalformedTimestampError{Table: table, Value: raw, Err: err}
	}

	now := m.now()
	if !policy.Fresh(createdAt, now) {
		logger.WithField("age", humanize.RelTime(createdAt, now, "old", "ahead")).Debug("cache miss: stale")
		return nil, false, nil
	}

	rows, err := ts.ReadAll(ctx, table)
	if errors.Is(err, store.ErrNotFound) {
		logger.Debug("cache miss: table vanished")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	logger.WithFields(log.Fields{
		"age":  humanize.RelTime(createdAt, now, "old", "ahead"),
		"rows": len(rows),
	}).Info("cache hit")
	return rows, true, nil
}

func (m *Manager) fill(
	ctx context.Context,
	ts store.TableStore,
	table string,
	producer Producer,
	logger *log.Entry,
) (store.Rows, error) {
	logger.Info("recomputing")

	rows, err := producer(ctx)
	if err != nil {
		logger.WithError(err).Error("producer failed")
		return nil, err
	}

	stamped := Stamp(rows, m.now())
	if err := ts.Replace(ctx, table, stamped); err != nil {
		return nil, err
	}

	logger.WithField("rows", humanize.Comma(int64(len(stamped)))).Info("cache filled")
	return stamped, nil
}

// Stamp copies rows, setting created_at on each to at in UTC RFC 3339 form.
// Values are widened to the kinds a store reads back, so a fill and a later
// hit return equal rows. The input rows are not modified.
func Stamp(rows store.Rows, at time.Time) store.Rows {
	createdAt := at.UTC().Format(time.RFC3339Nano)
	stamped := make(store.Rows, len(rows))
	for i, row := range rows {
		cp := make(store.Row, len(row)+1)
		for k, v := range row {
			cp[k] = canonical(v)
		}
		cp[store.CreatedAtColumn] = createdAt
		stamped[i] = cp
	}
	return stamped
}

// canonical widens integers to int64 and float32 to float64. Times lose their
// zone and monotonic reading. Anything else, supported or not, is left for the
// store to judge.
func canonical(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case float32:
		return float64(v)
	case time.Time:
		return v.UTC()
	default:
		return v
	}
}

// Typed adapts a producer of T values into a Producer using encode for each
// element.
func Typed[T any](produce func(context.Context) ([]T, error), encode func(T) store.Row) Producer {
	return func(ctx context.Context) (store.Rows, error) {
		items, err := produce(ctx)
		if err != nil {
			return nil, err
		}
		rows := make(store.Rows, len(items))
		for i, item := range items {
			rows[i] = encode(item)
		}
		return rows, nil
	}
}

// keyedMutex serializes work per key and drops a key's mutex once nobody
// holds or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*refMutex{}
	}
	rm, ok := k.locks[key]
	if !ok {
		rm = &refMutex{}
		k.locks[key] = rm
	}
	rm.refs++
	k.mu.Unlock()

	rm.Lock()
	return func() {
		rm.Unlock()
		k.mu.Lock()
		rm.refs--
		if rm.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
