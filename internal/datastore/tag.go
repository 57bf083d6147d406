// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package datastore

import (
	"time"

	"github.com/google/uuid"
)

// tag is the internal, mutex-protected representation of a DataPoint.
// Fields are only ever touched while the owning DataStore's lock is held.
type tag struct {
	key         string
	id          uuid.UUID
	hasID       bool
	dataType    DataType
	units       string
	address     int // 0 means unassigned
	value       Value
	defaultVal  Value
	timestamp   time.Time
	lastChange  time.Time
	quality     Quality
	history     *ring
	historyCap  int
}

// DetailedTag is a point-in-time, immutable copy of a tag's full metadata,
// returned by DataStore.DetailedSnapshot so callers never see live pointers
// into store-internal state.
type DetailedTag struct {
	Key        string
	ID         uuid.UUID
	DataType   DataType
	Units      string
	Address    int
	Value      Value
	Default    Value
	Timestamp  time.Time
	LastChange time.Time
	Quality    Quality
}

func (t *tag) snapshot() DetailedTag {
	return DetailedTag{
		Key:        t.key,
		ID:         t.id,
		DataType:   t.dataType,
		Units:      t.units,
		Address:    t.address,
		Value:      t.value,
		Default:    t.defaultVal,
		Timestamp:  t.timestamp,
		LastChange: t.lastChange,
		Quality:    t.quality,
	}
}
