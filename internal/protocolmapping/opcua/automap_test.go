// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opcua

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantscope/dataservice/internal/datastore"
)

func TestAutoMapClassifiesFlowAsDouble(t *testing.T) {
	store := datastore.New(nil, 10)
	reg := New()

	_, err := store.Register("line.flow_rate", datastore.Float, datastore.RegisterOptions{Units: "m3/h"})
	require.NoError(t, err)
	id, _ := store.EnsureID("line.flow_rate")

	results := reg.AutoMap(store, []uuid.UUID{id})
	require.Len(t, results, 1)
	assert.Equal(t, Double, results[0].Entry.Type)
}

func TestAutoMapIsIdempotentAcrossRepeatedCalls(t *testing.T) {
	store := datastore.New(nil, 10)
	reg := New()

	_, err := store.Register("valve.enabled", datastore.Bool, datastore.RegisterOptions{})
	require.NoError(t, err)
	id, _ := store.EnsureID("valve.enabled")

	first := reg.AutoMap(store, []uuid.UUID{id})
	require.Len(t, first, 1)

	second := reg.AutoMap(store, []uuid.UUID{id})
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Entry.Identifier, second[0].Entry.Identifier)
}
