// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opcua

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/plantscope/dataservice/internal/datastore"
	"github.com/plantscope/dataservice/internal/protocolmapping"
)

// AutoMapResult reports the outcome of mapping one tag during AutoMap.
type AutoMapResult struct {
	ID    uuid.UUID
	Key   string
	Entry Entry
	Err   error
}

// ClassifyDataType mirrors the original bulk-mapping heuristic: physical
// measurements become Double for precision, bools and status-like keys
// become Boolean, small integers become Int16, other integers Int32, and
// strings stay String.
func ClassifyDataType(dt datastore.DataType, key, units string) VariantType {
	k := strings.ToLower(key)
	hint := protocolmapping.Classify(key, units)

	switch {
	case hint == protocolmapping.HintTemperature, hint == protocolmapping.HintPressure,
		hint == protocolmapping.HintFlow, hint == protocolmapping.HintVibration, hint == protocolmapping.HintPower:
		return Double
	case dt == datastore.Bool, strings.Contains(k, "status"), strings.Contains(k, "enabled"), strings.Contains(k, "motor"):
		return BooleanV
	case dt == datastore.Int:
		if hint == protocolmapping.HintPercentage || hint == protocolmapping.HintStatusCode {
			return Int16V
		}
		return Int32V
	case dt == datastore.String:
		return StringV
	case dt == datastore.Float:
		return Double
	default:
		return Double
	}
}

// AutoMap bulk-creates OPC-UA nodes for every id in ids (§4.9). Because
// node creation is lazy-create-wins, an id already mapped keeps its
// existing node and type.
func (r *Registry) AutoMap(store *datastore.DataStore, ids []uuid.UUID) []AutoMapResult {
	out := make([]AutoMapResult, 0, len(ids))

	for _, id := range ids {
		key, ok := store.KeyForID(id)
		if !ok {
			out = append(out, AutoMapResult{ID: id, Err: fmt.Errorf("opcua: id %s not found in data store", id)})
			continue
		}
		detail, ok := store.DetailedSnapshot()[key]
		if !ok {
			out = append(out, AutoMapResult{ID: id, Key: key, Err: fmt.Errorf("opcua: key %q vanished from data store", key)})
			continue
		}

		typ := ClassifyDataType(detail.DataType, key, detail.Units)
		entry, err := r.EnsureNode(key, typ)
		if err != nil {
			out = append(out, AutoMapResult{ID: id, Key: key, Err: err})
			continue
		}
		out = append(out, AutoMapResult{ID: id, Key: key, Entry: entry})
	}

	return out
}
