// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package datastore

import "fmt"

// AddressRange is a closed interval [Low, High] reserved for one DataType.
type AddressRange struct {
	Low, High int
}

func (r AddressRange) contains(addr int) bool {
	return addr >= r.Low && addr <= r.High
}

// DefaultAddressRanges implements the table in §4.1.
func DefaultAddressRanges() map[DataType]AddressRange {
	return map[DataType]AddressRange{
		Float:  {40001, 41000},
		Int:    {41001, 42000},
		Bool:   {42001, 43000},
		String: {43001, 44000},
		Raw:    {44001, 45000},
	}
}

var ErrAddressConflict = fmt.Errorf("datastore: address already taken by another key")
var ErrAddressSpaceExhausted = fmt.Errorf("datastore: address space exhausted for data type")

// addressAllocator hands out the next free address within a type's range,
// caching a "next" cursor per type the way §4.1 specifies: linear scan from
// a cursor, skipping taken addresses, failing once the range is exhausted.
type addressAllocator struct {
	ranges map[DataType]AddressRange
	cursor map[DataType]int
	taken  map[int]string // address -> key
}

func newAddressAllocator(ranges map[DataType]AddressRange) *addressAllocator {
	cursor := make(map[DataType]int, len(ranges))
	for t, r := range ranges {
		cursor[t] = r.Low
	}
	return &addressAllocator{
		ranges: ranges,
		cursor: cursor,
		taken:  make(map[int]string),
	}
}

// reserve claims an explicit address for key, failing if it is already
// held by a different key or falls outside t's range.
func (a *addressAllocator) reserve(t DataType, addr int, key string) error {
	r, ok := a.ranges[t]
	if !ok {
		return fmt.Errorf("datastore: no address range configured for data type %s", t)
	}
	if !r.contains(addr) {
		return fmt.Errorf("datastore: address %d out of range for data type %s", addr, t)
	}
	if owner, ok := a.taken[addr]; ok && owner != key {
		return ErrAddressConflict
	}
	a.taken[addr] = key
	return nil
}

// allocate picks the next free address in t's range for key.
func (a *addressAllocator) allocate(t DataType, key string) (int, error) {
	r, ok := a.ranges[t]
	if !ok {
		return 0, fmt.Errorf("datastore: no address range configured for data type %s", t)
	}

	start := a.cursor[t]
	if start < r.Low || start > r.High {
		start = r.Low
	}

	for addr := start; addr <= r.High; addr++ {
		if _, taken := a.taken[addr]; !taken {
			a.taken[addr] = key
			a.cursor[t] = addr + 1
			return addr, nil
		}
	}
	// Wrap around once in case earlier addresses were freed (tags are never
	// removed in this gateway, but defensive nonetheless).
	for addr := r.Low; addr < start; addr++ {
		if _, taken := a.taken[addr]; !taken {
			a.taken[addr] = key
			a.cursor[t] = addr + 1
			return addr, nil
		}
	}

	return 0, ErrAddressSpaceExhausted
}
