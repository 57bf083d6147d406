// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package modbus

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantscope/dataservice/internal/datastore"
	"github.com/plantscope/dataservice/internal/protocolmapping"
)

func TestAutoMapClassifiesTemperatureAsFloat32(t *testing.T) {
	store := datastore.New(nil, 10)
	reg := New()

	_, err := store.Register("boiler.temperature", datastore.Float, datastore.RegisterOptions{Units: "C"})
	require.NoError(t, err)
	id, _ := store.EnsureID("boiler.temperature")

	results := reg.AutoMap(store, []uuid.UUID{id}, protocolmapping.StrategyByDataType)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, Float32, results[0].Entry.Type)
}

func TestAutoMapReportsUnknownID(t *testing.T) {
	store := datastore.New(nil, 10)
	reg := New()

	results := reg.AutoMap(store, []uuid.UUID{uuid.New()}, protocolmapping.StrategyByDataType)
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
}
