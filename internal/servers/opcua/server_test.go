// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opcua

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantscope/dataservice/internal/datastore"
	protoopcua "github.com/plantscope/dataservice/internal/protocolmapping/opcua"
)

func TestRefreshPopulatesSnapshotFromStore(t *testing.T) {
	store := datastore.New(nil, 10)
	mapping := protoopcua.New()

	_, err := store.Register("tank.level", datastore.Float, datastore.RegisterOptions{})
	require.NoError(t, err)
	store.Write("tank.level", 42.0)

	_, err = mapping.EnsureNode("tank.level", protoopcua.Double)
	require.NoError(t, err)

	s := New("127.0.0.1:0", store, mapping)
	s.refresh()

	resp := s.applyAndSnapshot(readRequest{})
	require.Contains(t, resp.Nodes, "tank.level")
	assert.Equal(t, "Double", resp.Nodes["tank.level"].Type)
	assert.InDelta(t, 42.0, resp.Nodes["tank.level"].Value, 0.001)
}

func TestApplyAndSnapshotAppliesWrites(t *testing.T) {
	store := datastore.New(nil, 10)
	mapping := protoopcua.New()

	_, err := store.Register("valve.open", datastore.Bool, datastore.RegisterOptions{})
	require.NoError(t, err)
	_, err = mapping.EnsureNode("valve.open", protoopcua.BooleanV)
	require.NoError(t, err)

	s := New("127.0.0.1:0", store, mapping)
	s.refresh()

	resp := s.applyAndSnapshot(readRequest{Writes: map[string]json.RawMessage{"valve.open": json.RawMessage("true")}})
	require.True(t, resp.OK)

	s.refresh()
	after := s.applyAndSnapshot(readRequest{})
	assert.Equal(t, true, after.Nodes["valve.open"].Value)
}

func TestRefreshLazilyMaterializesUnmappedDataStoreTag(t *testing.T) {
	store := datastore.New(nil, 10)
	mapping := protoopcua.New()

	_, err := store.Register("pump.speed", datastore.Int, datastore.RegisterOptions{})
	require.NoError(t, err)
	store.Write("pump.speed", 1200)

	s := New("127.0.0.1:0", store, mapping)

	_, mapped := mapping.Get("pump.speed")
	require.False(t, mapped)

	s.refresh()

	_, mapped = mapping.Get("pump.speed")
	assert.True(t, mapped)

	resp := s.applyAndSnapshot(readRequest{})
	require.Contains(t, resp.Nodes, "pump.speed")
	assert.EqualValues(t, 1200, resp.Nodes["pump.speed"].Value)
}

func TestEnsureMappedOnlyCreatesWhenAbsent(t *testing.T) {
	store := datastore.New(nil, 10)
	mapping := protoopcua.New()
	s := New("127.0.0.1:0", store, mapping)

	id, _ := store.EnsureID("pressure.sensor")
	s.EnsureMapped("pressure.sensor", id)
	first, ok := mapping.Get("pressure.sensor")
	require.True(t, ok)

	s.EnsureMapped("pressure.sensor", id)
	second, _ := mapping.Get("pressure.sensor")
	assert.Equal(t, first.Identifier, second.Identifier)
}
