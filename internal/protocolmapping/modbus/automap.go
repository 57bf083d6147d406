// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package modbus

import (
	"fmt"

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

// classifyDataType picks a Modbus RegisterType from a tag's gateway
// DataType, key, and units, mirroring the original bulk-mapping heuristic:
// float and raw tags become float32; int tags that look like percentages or
// status codes become int16 and other int tags int32; bools become bool;
// strings become string8.
func classifyDataType(dt datastore.DataType, key, units string) RegisterType {
	hint := protocolmapping.Classify(key, units)

	switch dt {
	case datastore.Bool:
		return Bool
	case datastore.String:
		return String8
	case datastore.Int:
		switch hint {
		case protocolmapping.HintPercentage, protocolmapping.HintStatusCode:
			return Int16
		default:
			return Int32
		}
	case datastore.Float, datastore.Raw:
		switch hint {
		case protocolmapping.HintTemperature, protocolmapping.HintPressure,
			protocolmapping.HintFlow, protocolmapping.HintVibration, protocolmapping.HintPower:
			return Float32
		default:
			return Float32
		}
	default:
		return Int16
	}
}

// AutoMap bulk-assigns Modbus registers for every id in ids, classifying
// each tag's wire encoding from its gateway data type, key and units
// (§4.9). Unknown ids are reported as per-item errors rather than failing
// the whole batch.
func (r *Registry) AutoMap(store *datastore.DataStore, ids []uuid.UUID, strategy protocolmapping.Strategy) []AutoMapResult {
	out := make([]AutoMapResult, 0, len(ids))

	for _, id := range ids {
		key, ok := store.KeyForID(id)
		if !ok {
			out = append(out, AutoMapResult{ID: id, Err: fmt.Errorf("modbus: id %s not found in data store", id)})
			continue
		}

		detail, ok := store.DetailedSnapshot()[key]
		if !ok {
			out = append(out, AutoMapResult{ID: id, Key: key, Err: fmt.Errorf("modbus: key %q vanished from data store", key)})
			continue
		}

		regType := classifyDataType(detail.DataType, key, detail.Units)

		var entry Entry
		var err error
		if strategy == protocolmapping.StrategySequential {
			addr, allocErr := r.alloc.Allocate(regType)
			if allocErr != nil {
				err = allocErr
			} else {
				entry, err = r.Map(key, regType, addr, 1.0, BigEndian, detail.Units)
			}
		} else {
			entry, err = r.Map(key, regType, 0, 1.0, BigEndian, detail.Units)
		}

		if err != nil {
			out = append(out, AutoMapResult{ID: id, Key: key, Err: err})
			continue
		}
		out = append(out, AutoMapResult{ID: id, Key: key, Entry: entry})
	}

	return out
}
