// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iec104

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

// classifyDataType mirrors the original bulk-mapping heuristic: physical
// measurements (temperature, pressure, flow, vibration, power) and plain
// floats become M_ME_NC_1, bools and obviously status-like keys become
// M_SP_NA_1, and integers become M_ME_NB_1.
func classifyDataType(dt datastore.DataType, key, units string) ASDUType {
	k := strings.ToLower(key)
	hint := protocolmapping.Classify(key, units)

	switch {
	case dt == datastore.Bool, strings.Contains(k, "status"), strings.Contains(k, "enabled"), strings.Contains(k, "motor"):
		return MSpNA1
	case hint == protocolmapping.HintTemperature, hint == protocolmapping.HintPressure,
		hint == protocolmapping.HintFlow, hint == protocolmapping.HintVibration, hint == protocolmapping.HintPower:
		return MMeNC1
	case dt == datastore.Int:
		return MMeNB1
	case dt == datastore.Float:
		return MMeNC1
	default:
		return MMeNC1
	}
}

// AutoMap bulk-assigns IOAs for every id in ids (§4.9).
func (r *Registry) AutoMap(store *datastore.DataStore, ids []uuid.UUID, strategy protocolmapping.Strategy) []AutoMapResult {
	out := make([]AutoMapResult, 0, len(ids))

	for _, id := range ids {
		key, ok := store.KeyForID(id)
		if !ok {
			out = append(out, AutoMapResult{ID: id, Err: fmt.Errorf("iec104: id %s not found in data store", id)})
			continue
		}
		detail, ok := store.DetailedSnapshot()[key]
		if !ok {
			out = append(out, AutoMapResult{ID: id, Key: key, Err: fmt.Errorf("iec104: key %q vanished from data store", key)})
			continue
		}

		typ := classifyDataType(detail.DataType, key, detail.Units)

		var ioa int
		var err error
		if strategy == protocolmapping.StrategySequential {
			ioa, err = r.alloc.Allocate(typ)
		}
		var entry Entry
		if err == nil {
			entry, err = r.Map(key, typ, ioa)
		}
		if err != nil {
			out = append(out, AutoMapResult{ID: id, Key: key, Err: err})
			continue
		}
		out = append(out, AutoMapResult{ID: id, Key: key, Entry: entry})
	}

	return out
}
