// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package snmp

import (
	"strings"

	"github.com/google/uuid"

	"github.com/plantscope/dataservice/internal/datastore"
)

// AutoMapResult reports the outcome of mapping one tag during a bulk pass.
type AutoMapResult struct {
	ID    uuid.UUID
	Key   string
	Entry Entry
	Err   error
}

// classifyDataType picks a scalar SNMP type the same way the bulk importer
// picked a Modbus/IEC-104/OPC-UA native type: counters and totalized
// quantities become Counter32/64, booleans become Integer, anything textual
// becomes OctetString, and every other numeric tag becomes Gauge32.
func classifyDataType(dt datastore.DataType, key, units string) ScalarType {
	k := strings.ToLower(key)
	u := strings.ToLower(units)

	switch dt {
	case datastore.Bool:
		return TypeInteger
	case datastore.String, datastore.Raw:
		return TypeOctetString
	}

	switch {
	case strings.Contains(k, "total") || strings.Contains(k, "counter") || strings.Contains(k, "count"):
		if strings.Contains(k, "energy") || strings.Contains(k, "kwh") {
			return TypeCounter64
		}
		return TypeCounter32
	case strings.Contains(k, "percent") || strings.Contains(u, "%") || strings.Contains(k, "level"):
		return TypeGauge32
	case dt == datastore.Int:
		return TypeGauge32
	default:
		return TypeGauge32
	}
}

// AutoMap maps every id in ids that isn't already mapped, assigning each a
// fresh OID suffix in registration order.
func (r *Registry) AutoMap(store *datastore.DataStore, ids []uuid.UUID) []AutoMapResult {
	results := make([]AutoMapResult, 0, len(ids))
	for _, id := range ids {
		key, ok := store.KeyForID(id)
		if !ok {
			continue
		}
		if _, already := r.Get(key); already {
			continue
		}
		detail := store.DetailedSnapshot()[key]
		typ := classifyDataType(detail.DataType, key, detail.Units)

		e, err := r.Map(key, typ, 0)
		results = append(results, AutoMapResult{ID: id, Key: key, Entry: e, Err: err})
	}
	return results
}
