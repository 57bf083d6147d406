// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package snmp

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantscope/dataservice/internal/datastore"
)

func TestAutoMapClassifiesByKeyAndUnits(t *testing.T) {
	store := datastore.New(nil, 10)
	reg := New()

	cases := []struct {
		key, units string
		dt         datastore.DataType
		want       ScalarType
	}{
		{"pump.running", "", datastore.Bool, TypeInteger},
		{"event.count", "", datastore.Int, TypeCounter32},
	}

	ids := make([]uuid.UUID, 0, len(cases))
	for _, c := range cases {
		_, err := store.Register(c.key, c.dt, datastore.RegisterOptions{Units: c.units})
		require.NoError(t, err)
		id, _ := store.EnsureID(c.key)
		ids = append(ids, id)
	}

	results := reg.AutoMap(store, ids)
	require.Len(t, results, len(cases))

	for i, c := range cases {
		assert.NoError(t, results[i].Err)
		assert.Equal(t, c.want, results[i].Entry.Type, "key %s", c.key)
	}
}

func TestAutoMapSkipsAlreadyMappedKeys(t *testing.T) {
	store := datastore.New(nil, 10)
	reg := New()

	_, err := store.Register("tank.level", datastore.Float, datastore.RegisterOptions{})
	require.NoError(t, err)
	id, _ := store.EnsureID("tank.level")

	first := reg.AutoMap(store, []uuid.UUID{id})
	require.Len(t, first, 1)

	second := reg.AutoMap(store, []uuid.UUID{id})
	assert.Empty(t, second, "already-mapped key should be skipped on a repeat pass")
}
