// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package datastore

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plantscope/dataservice/pkg/log"
)

// ChangeListener is invoked synchronously, under the store's lock, only on
// a value transition (old != new). Per §4.1 / §9, a listener MUST NOT
// perform blocking I/O or call back into the store or any mapping — it
// should enqueue work and return. Panics are recovered and logged, never
// propagated to the writer.
type ChangeListener func(key string, old, new Value, ts time.Time)

// RegisterOptions configures a tag at registration time.
type RegisterOptions struct {
	Units      string
	Address    int // 0 means "auto-allocate if enabled"
	Default    Value
	AutoAlloc  bool // not consulted by Register; NoAutoAddr controls auto allocation
	NoAutoAddr bool // explicit opt-out of auto allocation when Address==0
}

// DataStore is the gateway's core: a thread-safe, typed, in-memory tag
// store with address allocation, bounded history and change notification.
// A single mutex serializes every public operation; all of them are O(1)
// or O(n) over bounded structures (§4.1: "Concurrency").
type DataStore struct {
	mu            sync.Mutex
	tags          map[string]*tag // by key
	byAddress     map[int]*tag
	byID          map[uuid.UUID]string // id -> key
	alloc         *addressAllocator
	historyCap    int
	listeners     []ChangeListener
}

// New creates an empty DataStore. ranges overrides the default address
// table (§4.1); pass nil to use DefaultAddressRanges(). historyCap bounds
// each tag's ring buffer (default 1000 if <= 0).
func New(ranges map[DataType]AddressRange, historyCap int) *DataStore {
	if ranges == nil {
		ranges = DefaultAddressRanges()
	}
	if historyCap <= 0 {
		historyCap = 1000
	}
	return &DataStore{
		tags:       make(map[string]*tag),
		byAddress:  make(map[int]*tag),
		byID:       make(map[uuid.UUID]string),
		alloc:      newAddressAllocator(ranges),
		historyCap: historyCap,
	}
}

// Register is idempotent in key: registering the same key twice with the
// same data type returns the same address without resetting value. Returns
// the assigned address, or 0 if none was requested/allocated.
func (s *DataStore) Register(key string, dataType DataType, opts RegisterOptions) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.tags[key]; ok {
		return existing.address, nil
	}

	t := &tag{
		key:        key,
		dataType:   dataType,
		units:      opts.Units,
		defaultVal: opts.Default,
		value:      opts.Default,
		quality:    GOOD,
		history:    newRing(s.historyCap),
		historyCap: s.historyCap,
	}

	if opts.Address != 0 {
		if err := s.alloc.reserve(dataType, opts.Address, key); err != nil {
			return 0, err
		}
		t.address = opts.Address
	} else if !opts.NoAutoAddr {
		addr, err := s.alloc.allocate(dataType, key)
		if err != nil {
			return 0, err
		}
		t.address = addr
	}

	s.tags[key] = t
	if t.address != 0 {
		s.byAddress[t.address] = t
	}
	return t.address, nil
}

// EnsureID returns the tag's stable 128-bit id, minting one on first call.
// Returns uuid.Nil, false if key is not registered.
func (s *DataStore) EnsureID(key string) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tags[key]
	if !ok {
		return uuid.Nil, false
	}
	if !t.hasID {
		t.id = uuid.New()
		t.hasID = true
		s.byID[t.id] = key
	}
	return t.id, true
}

// KeyForID resolves a stable id back to its key.
func (s *DataStore) KeyForID(id uuid.UUID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byID[id]
	return key, ok
}

func (s *DataStore) lookup(keyOrAddress any) *tag {
	switch v := keyOrAddress.(type) {
	case string:
		return s.tags[v]
	case int:
		return s.byAddress[v]
	default:
		return nil
	}
}

// Read returns the current value for key or address, or a neutral zero if
// unknown. Never fails.
func (s *DataStore) Read(keyOrAddress any) Value {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.lookup(keyOrAddress)
	if t == nil {
		return ZeroValue(Float)
	}
	return t.value
}

// Write coerces raw into the target tag's data type and applies it. Writes
// to an unknown key/address are silently dropped (§7: UnknownTag). On
// coercion failure the tag's quality becomes BAD and its default is stored,
// and listeners are not fired.
func (s *DataStore) Write(keyOrAddress any, raw any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.lookup(keyOrAddress)
	if t == nil {
		return
	}

	now := time.Now()
	v, err := Coerce(t.dataType, raw)
	if err != nil {
		t.quality = BAD
		t.value = t.defaultVal
		t.timestamp = now
		t.history.push(Sample{Timestamp: now, Value: t.value})
		return
	}

	old := t.value
	t.quality = GOOD
	t.value = v
	t.timestamp = now
	transitioned := !valueEqual(old, v)
	if transitioned {
		t.lastChange = now
	}
	t.history.push(Sample{Timestamp: now, Value: v})

	if transitioned {
		s.fireListeners(t.key, old, v, now)
	}
}

func (s *DataStore) fireListeners(key string, old, new Value, ts time.Time) {
	for _, l := range s.listeners {
		s.invokeListener(l, key, old, new, ts)
	}
}

func (s *DataStore) invokeListener(l ChangeListener, key string, old, new Value, ts time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("datastore: change listener for %q panicked: %v", key, r)
		}
	}()
	l(key, old, new, ts)
}

func valueEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false // different kind always counts as a transition
	}
	switch a.Kind {
	case Float:
		return a.F == b.F
	case Int:
		return a.I == b.I
	case Bool:
		return a.B == b.B
	case String:
		return a.S == b.S
	case Raw:
		if len(a.R) != len(b.R) {
			return false
		}
		for i := range a.R {
			if a.R[i] != b.R[i] {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// AddChangeListener registers fn. Duplicate registrations of the same
// function fire once per registration (§8 property 7: "duplicate callbacks
// fire twice").
func (s *DataStore) AddChangeListener(fn ChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns a point-in-time mapping of every key to its current
// value.
func (s *DataStore) Snapshot() map[string]Value {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Value, len(s.tags))
	for k, t := range s.tags {
		out[k] = t.value
	}
	return out
}

// DetailedSnapshot is Snapshot with full tag metadata.
func (s *DataStore) DetailedSnapshot() map[string]DetailedTag {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]DetailedTag, len(s.tags))
	for k, t := range s.tags {
		out[k] = t.snapshot()
	}
	return out
}

// GetHistory returns the last limit samples for key, oldest to newest.
func (s *DataStore) GetHistory(key string, limit int) []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tags[key]
	if !ok {
		return nil
	}
	return t.history.last(limit)
}

// DataType returns the configured data type for key, if registered.
func (s *DataStore) DataType(key string) (DataType, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tags[key]
	if !ok {
		return 0, false
	}
	return t.dataType, true
}
