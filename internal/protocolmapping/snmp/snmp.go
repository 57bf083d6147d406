// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package snmp maps gateway tag keys onto scalar OIDs under a single
// enterprise arc, each suffixed by a simple positive integer.
package snmp

import (
	"fmt"

	"github.com/gosnmp/gosnmp"

	"github.com/plantscope/dataservice/internal/protocolmapping"
)

// EnterpriseOID is the base arc every scalar is published under.
const EnterpriseOID = "1.3.6.1.4.1.55555.1"

// ScalarType mirrors the handful of SNMPv2c types this gateway exposes.
// gosnmp's Asn1BER constants are reused directly rather than redefining
// the BER tag values.
type ScalarType gosnmp.Asn1BER

const (
	TypeInteger    = ScalarType(gosnmp.Integer)
	TypeGauge32    = ScalarType(gosnmp.Gauge32)
	TypeCounter32  = ScalarType(gosnmp.Counter32)
	TypeCounter64  = ScalarType(gosnmp.Counter64)
	TypeOctetString = ScalarType(gosnmp.OctetString)
)

// Entry is one tag's SNMP placement.
type Entry struct {
	Key    string
	Type   ScalarType
	Suffix int
}

// OID returns the full dotted OID string for e.
func (e Entry) OID() string {
	return fmt.Sprintf("%s.%d.0", EnterpriseOID, e.Suffix)
}

// Registry is the SNMP mapping table: key -> scalar OID.
//
// Unlike the other three protocols, SNMP places every tag in the same flat
// positive-integer suffix space regardless of ScalarType, so a single
// class ("scalar") allocator range covers it.
type Registry struct {
	reg   *protocolmapping.Registry[Entry]
	alloc *protocolmapping.ClassAllocator[string]
}

const scalarClass = "scalar"

func New() *Registry {
	ranges := map[string]protocolmapping.Range{scalarClass: {Low: 1, High: 9999}}
	return &Registry{
		reg:   protocolmapping.NewRegistry[Entry](),
		alloc: protocolmapping.NewClassAllocator(ranges),
	}
}

// Map assigns key an OID suffix, auto-allocating unless suffix is non-zero.
func (r *Registry) Map(key string, typ ScalarType, suffix int) (Entry, error) {
	var s int
	var err error
	if suffix != 0 {
		if owner, _, ok := r.reg.FindByLabel(Entry{Suffix: suffix}.OID()); ok && owner != key {
			return Entry{}, fmt.Errorf("snmp: suffix %d already mapped to %q", suffix, owner)
		}
		if err = r.alloc.Reserve(scalarClass, suffix); err != nil {
			return Entry{}, fmt.Errorf("snmp: %w", err)
		}
		s = suffix
	} else {
		s, err = r.alloc.Allocate(scalarClass)
		if err != nil {
			return Entry{}, fmt.Errorf("snmp: %w", err)
		}
	}

	e := Entry{Key: key, Type: typ, Suffix: s}
	r.reg.Set(key, e.OID(), e)
	return e, nil
}

func (r *Registry) Get(key string) (Entry, bool) { return r.reg.Get(key) }
func (r *Registry) FindByOID(oid string) (string, Entry, bool) {
	return r.reg.FindByLabel(oid)
}
func (r *Registry) All() map[string]Entry { return r.reg.All() }
func (r *Registry) Len() int              { return r.reg.Len() }
