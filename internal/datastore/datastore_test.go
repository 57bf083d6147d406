// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	s := New(nil, 10)

	addr1, err := s.Register("tank.level", Float, RegisterOptions{Units: "m"})
	require.NoError(t, err)

	addr2, err := s.Register("tank.level", Float, RegisterOptions{Units: "m"})
	require.NoError(t, err)

	assert.Equal(t, addr1, addr2)
	assert.Len(t, s.Snapshot(), 1)
}

func TestRegisterRejectsAddressConflict(t *testing.T) {
	s := New(nil, 10)

	_, err := s.Register("a", Float, RegisterOptions{Address: 40010})
	require.NoError(t, err)

	_, err = s.Register("b", Float, RegisterOptions{Address: 40010})
	assert.ErrorIs(t, err, ErrAddressConflict)
}

func TestAddressAllocationIsUniquePerType(t *testing.T) {
	s := New(nil, 10)

	seen := map[int]bool{}
	for i := 0; i < 20; i++ {
		addr, err := s.Register(string(rune('a'+i)), Int, RegisterOptions{})
		require.NoError(t, err)
		assert.False(t, seen[addr], "address %d handed out twice", addr)
		seen[addr] = true
		assert.True(t, addr >= 41001 && addr <= 42000)
	}
}

func TestEnsureIDIsStableAndBijective(t *testing.T) {
	s := New(nil, 10)
	_, err := s.Register("pump.running", Bool, RegisterOptions{})
	require.NoError(t, err)

	id1, ok := s.EnsureID("pump.running")
	require.True(t, ok)
	id2, ok := s.EnsureID("pump.running")
	require.True(t, ok)
	assert.Equal(t, id1, id2)

	key, ok := s.KeyForID(id1)
	require.True(t, ok)
	assert.Equal(t, "pump.running", key)
}

func TestWriteCoercesStringToFloat(t *testing.T) {
	s := New(nil, 10)
	_, err := s.Register("sensor.temp", Float, RegisterOptions{Default: Value{Kind: Float, F: -1}})
	require.NoError(t, err)

	s.Write("sensor.temp", "17")
	v := s.Read("sensor.temp")
	assert.Equal(t, 17.0, v.F)

	snap := s.DetailedSnapshot()["sensor.temp"]
	assert.Equal(t, GOOD, snap.Quality)
}

func TestWriteFallsBackToDefaultOnBadCoercion(t *testing.T) {
	s := New(nil, 10)
	def := Value{Kind: Float, F: -99}
	_, err := s.Register("sensor.bad", Float, RegisterOptions{Default: def})
	require.NoError(t, err)

	s.Write("sensor.bad", "abc")

	v := s.Read("sensor.bad")
	assert.Equal(t, -99.0, v.F)

	snap := s.DetailedSnapshot()["sensor.bad"]
	assert.Equal(t, BAD, snap.Quality)
}

func TestWriteToUnknownKeyIsNoOp(t *testing.T) {
	s := New(nil, 10)
	assert.NotPanics(t, func() {
		s.Write("does.not.exist", 42)
	})
	assert.Empty(t, s.Snapshot())
}

func TestReadOfUnknownKeyReturnsNeutralZero(t *testing.T) {
	s := New(nil, 10)
	v := s.Read("missing")
	assert.Equal(t, Value{Kind: Float}, v)
}

func TestHistoryIsBoundedAndOldestIsDropped(t *testing.T) {
	s := New(nil, 3)
	_, err := s.Register("counter", Int, RegisterOptions{})
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		s.Write("counter", i)
	}

	hist := s.GetHistory("counter", 0)
	require.Len(t, hist, 3)
	assert.Equal(t, int64(3), hist[0].Value.I)
	assert.Equal(t, int64(4), hist[1].Value.I)
	assert.Equal(t, int64(5), hist[2].Value.I)
}

func TestChangeListenerFiresOnTransitionOnly(t *testing.T) {
	s := New(nil, 10)
	_, err := s.Register("valve.open", Bool, RegisterOptions{Default: Value{Kind: Bool, B: false}})
	require.NoError(t, err)

	fires := 0
	s.AddChangeListener(func(key string, old, new Value, ts time.Time) {
		fires++
	})

	s.Write("valve.open", false) // same as default, no transition
	s.Write("valve.open", true)  // transition
	s.Write("valve.open", true)  // repeat, no transition

	assert.Equal(t, 1, fires)
}

func TestDuplicateChangeListenersEachFire(t *testing.T) {
	s := New(nil, 10)
	_, err := s.Register("valve.open", Bool, RegisterOptions{})
	require.NoError(t, err)

	count := 0
	listener := func(key string, old, new Value, ts time.Time) {
		count++
	}
	s.AddChangeListener(listener)
	s.AddChangeListener(listener)

	s.Write("valve.open", true)

	assert.Equal(t, 2, count)
}
