// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package opcua maps gateway tag keys onto OPC-UA NodeIds in a single
// namespace, grouped into folder/variable nodes under Objects/SensorData.
package opcua

import (
	"fmt"

	"github.com/gopcua/opcua/ua"

	"github.com/plantscope/dataservice/internal/protocolmapping"
)

const Namespace = "http://dataservice.gateway.io"
const NamespaceIndex = 2
const RootFolder = "Objects/SensorData"

// VariantType is the OPC-UA builtin type a tag is exposed as. It is pinned
// at creation time: later writes of a different gateway DataType are
// coerced to this type, never allowed to change it (resolves the "lazy
// node creation" open question in favor of first-write-wins typing).
type VariantType int

const (
	Double VariantType = iota
	Int32V
	Int16V
	BooleanV
	StringV
	FloatV
	ByteV
	SByteV
)

func (t VariantType) ua() ua.TypeID {
	switch t {
	case Double:
		return ua.TypeIDDouble
	case Int32V:
		return ua.TypeIDInt32
	case Int16V:
		return ua.TypeIDInt16
	case BooleanV:
		return ua.TypeIDBoolean
	case StringV:
		return ua.TypeIDString
	case FloatV:
		return ua.TypeIDFloat
	case ByteV:
		return ua.TypeIDByte
	case SByteV:
		return ua.TypeIDSByte
	default:
		return ua.TypeIDVariant
	}
}

// Entry is one tag's OPC-UA placement.
type Entry struct {
	Key        string
	Type       VariantType
	Identifier int
	NodeID     *ua.NodeID
	FolderPath string
}

// Ranges implements the sub-range table in §4.2.
func Ranges() map[VariantType]protocolmapping.Range {
	return map[VariantType]protocolmapping.Range{
		Double:   {Low: 100, High: 199},
		Int32V:   {Low: 200, High: 299},
		Int16V:   {Low: 300, High: 399},
		BooleanV: {Low: 400, High: 499},
		StringV:  {Low: 500, High: 599},
		FloatV:   {Low: 600, High: 699},
		ByteV:    {Low: 700, High: 799},
		SByteV:   {Low: 800, High: 899},
	}
}

// Registry is the OPC-UA mapping table: key -> node placement.
type Registry struct {
	reg   *protocolmapping.Registry[Entry]
	alloc *protocolmapping.ClassAllocator[VariantType]
}

func New() *Registry {
	return &Registry{
		reg:   protocolmapping.NewRegistry[Entry](),
		alloc: protocolmapping.NewClassAllocator(Ranges()),
	}
}

// EnsureNode returns the existing node for key, or creates one of the
// given type (lazy-create-wins: whichever write reaches the store first
// fixes the node's type for its lifetime).
func (r *Registry) EnsureNode(key string, typ VariantType) (Entry, error) {
	if e, ok := r.reg.Get(key); ok {
		return e, nil
	}

	id, err := r.alloc.Allocate(typ)
	if err != nil {
		return Entry{}, fmt.Errorf("opcua: %w", err)
	}

	e := Entry{
		Key:        key,
		Type:       typ,
		Identifier: id,
		NodeID:     ua.NewNumericNodeID(NamespaceIndex, uint32(id)),
		FolderPath: RootFolder + "/" + key,
	}
	r.reg.Set(key, fmt.Sprintf("%d", id), e)
	return e, nil
}

func (r *Registry) Get(key string) (Entry, bool) { return r.reg.Get(key) }
func (r *Registry) FindByIdentifier(id int) (string, Entry, bool) {
	return r.reg.FindByLabel(fmt.Sprintf("%d", id))
}
func (r *Registry) All() map[string]Entry { return r.reg.All() }
func (r *Registry) Len() int              { return r.reg.Len() }
