// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package iec104 maps gateway tag keys onto IEC 60870-5-104 information
// object addresses, grouped by ASDU type.
package iec104

import (
	"fmt"

	"github.com/plantscope/dataservice/internal/protocolmapping"
)

// ASDUType is one of the monitor-direction types this gateway publishes.
type ASDUType int

const (
	MMeNC1 ASDUType = iota // short floating point
	MMeNB1                 // scaled value
	MSpNA1                 // single point
	MMeNA1                 // normalized value
	MMeNF1                 // short float variant used for bulk-mapped floats
)

func (t ASDUType) String() string {
	switch t {
	case MMeNC1:
		return "M_ME_NC_1"
	case MMeNB1:
		return "M_ME_NB_1"
	case MSpNA1:
		return "M_SP_NA_1"
	case MMeNA1:
		return "M_ME_NA_1"
	case MMeNF1:
		return "M_ME_NF_1"
	default:
		return "unknown"
	}
}

// TypeID returns the ASDU type identifier octet as transmitted on the wire.
func (t ASDUType) TypeID() byte {
	switch t {
	case MMeNC1:
		return 13
	case MMeNB1:
		return 11
	case MSpNA1:
		return 1
	case MMeNA1:
		return 9
	case MMeNF1:
		return 36
	default:
		return 0
	}
}

// Entry is one tag's IEC-104 placement.
type Entry struct {
	Key           string
	Type          ASDUType
	IOA           int
	CommonAddress int
	COT           byte
}

// Ranges implements the sub-range table in §4.2.
func Ranges() map[ASDUType]protocolmapping.Range {
	return map[ASDUType]protocolmapping.Range{
		MMeNC1: {Low: 1000, High: 1999},
		MMeNB1: {Low: 2000, High: 2999},
		MSpNA1: {Low: 3000, High: 3999},
		MMeNA1: {Low: 4000, High: 4999},
		MMeNF1: {Low: 5000, High: 5999},
	}
}

const DefaultCommonAddress = 1
const DefaultCOT = 3 // spontaneous

// Registry is the IEC-104 mapping table: key -> information object.
type Registry struct {
	reg   *protocolmapping.Registry[Entry]
	alloc *protocolmapping.ClassAllocator[ASDUType]
}

func New() *Registry {
	return &Registry{
		reg:   protocolmapping.NewRegistry[Entry](),
		alloc: protocolmapping.NewClassAllocator(Ranges()),
	}
}

// Map assigns key to an IOA, auto-allocating within the ASDU type's
// sub-range unless ioa is non-zero.
func (r *Registry) Map(key string, typ ASDUType, ioa int) (Entry, error) {
	var address int
	var err error
	if ioa != 0 {
		if owner, _, ok := r.reg.FindByLabel(fmt.Sprintf("%d", ioa)); ok && owner != key {
			return Entry{}, fmt.Errorf("iec104: IOA %d already mapped to %q", ioa, owner)
		}
		if err = r.alloc.Reserve(typ, ioa); err != nil {
			return Entry{}, fmt.Errorf("iec104: %w", err)
		}
		address = ioa
	} else {
		address, err = r.alloc.Allocate(typ)
		if err != nil {
			return Entry{}, fmt.Errorf("iec104: %w", err)
		}
	}

	e := Entry{Key: key, Type: typ, IOA: address, CommonAddress: DefaultCommonAddress, COT: DefaultCOT}
	r.reg.Set(key, fmt.Sprintf("%d", address), e)
	return e, nil
}

func (r *Registry) Get(key string) (Entry, bool) { return r.reg.Get(key) }
func (r *Registry) FindByIOA(ioa int) (string, Entry, bool) {
	return r.reg.FindByLabel(fmt.Sprintf("%d", ioa))
}
func (r *Registry) Remove(key string)     { r.reg.Remove(key) }
func (r *Registry) All() map[string]Entry { return r.reg.All() }
func (r *Registry) Len() int              { return r.reg.Len() }
