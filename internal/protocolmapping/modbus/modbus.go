// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package modbus maps gateway tag keys onto Modbus holding/input register
// addresses, grouped by on-wire encoding rather than by gateway DataType:
// a float tag can be published as a scaled int16 if that is how the
// downstream PLC expects it.
package modbus

import (
	"fmt"

	"github.com/plantscope/dataservice/internal/protocolmapping"
)

// RegisterType is the Modbus-native encoding a tag is published as.
type RegisterType int

const (
	Float32 RegisterType = iota
	Int32
	Int16
	String8
	String16
	Bool
)

func (t RegisterType) String() string {
	switch t {
	case Float32:
		return "float32"
	case Int32:
		return "int32"
	case Int16:
		return "int16"
	case String8:
		return "string8"
	case String16:
		return "string16"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// Endianness selects the register word order used to encode multi-register
// values (§4.2/§6 Testable Property #9).
type Endianness int

const (
	BigEndian Endianness = iota
	LittleEndian
)

// Entry is one tag's Modbus-native placement.
type Entry struct {
	Key           string
	Type          RegisterType
	Address       int
	ScalingFactor float64
	Endian        Endianness
	Units         string
}

// Ranges implements the sub-range table in §4.2.
func Ranges() map[RegisterType]protocolmapping.Range {
	return map[RegisterType]protocolmapping.Range{
		Float32:  {Low: 40001, High: 41000},
		Int32:    {Low: 41001, High: 42000},
		Int16:    {Low: 42001, High: 43000},
		String8:  {Low: 43001, High: 44000},
		String16: {Low: 44001, High: 45000},
		Bool:     {Low: 45001, High: 46000},
	}
}

// Registry is the Modbus mapping table: key -> register placement.
type Registry struct {
	reg   *protocolmapping.Registry[Entry]
	alloc *protocolmapping.ClassAllocator[RegisterType]
}

// New builds an empty Modbus registry.
func New() *Registry {
	return &Registry{
		reg:   protocolmapping.NewRegistry[Entry](),
		alloc: protocolmapping.NewClassAllocator(Ranges()),
	}
}

// Map assigns key to a Modbus register, auto-allocating an address within
// the type's sub-range unless addr is non-zero.
func (r *Registry) Map(key string, typ RegisterType, addr int, scale float64, endian Endianness, units string) (Entry, error) {
	if scale == 0 {
		scale = 1
	}

	var address int
	var err error
	if addr != 0 {
		if err = r.alloc.Reserve(typ, addr); err != nil {
			return Entry{}, fmt.Errorf("modbus: %w", err)
		}
		address = addr
	} else {
		address, err = r.alloc.Allocate(typ)
		if err != nil {
			return Entry{}, fmt.Errorf("modbus: %w", err)
		}
	}

	e := Entry{Key: key, Type: typ, Address: address, ScalingFactor: scale, Endian: endian, Units: units}
	r.reg.Set(key, fmt.Sprintf("%d", address), e)
	return e, nil
}

func (r *Registry) Get(key string) (Entry, bool)               { return r.reg.Get(key) }
func (r *Registry) FindByAddress(addr int) (string, Entry, bool) {
	return r.reg.FindByLabel(fmt.Sprintf("%d", addr))
}
func (r *Registry) Remove(key string)       { r.reg.Remove(key) }
func (r *Registry) All() map[string]Entry   { return r.reg.All() }
func (r *Registry) Len() int                { return r.reg.Len() }
