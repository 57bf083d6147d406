// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package protocolmapping

import (
	"fmt"
	"sync"
)

// Range is a closed interval [Low, High] reserved for one protocol-native
// register/OID/node class.
type Range struct {
	Low, High int
}

func (r Range) contains(n int) bool {
	return n >= r.Low && n <= r.High
}

var ErrRangeExhausted = fmt.Errorf("protocolmapping: no free slot left in range")
var ErrOutOfRange = fmt.Errorf("protocolmapping: requested slot is outside its class range")

// ClassAllocator hands out the next free integer slot per class (Modbus
// register type, IEC-104 ASDU type, OPC-UA data type, ...), the same
// linear-scan-from-cursor policy the datastore package uses for its own
// address table.
type ClassAllocator[C comparable] struct {
	mu     sync.Mutex
	ranges map[C]Range
	cursor map[C]int
	taken  map[int]bool
}

// NewClassAllocator builds an allocator over the given per-class ranges.
func NewClassAllocator[C comparable](ranges map[C]Range) *ClassAllocator[C] {
	cursor := make(map[C]int, len(ranges))
	for c, r := range ranges {
		cursor[c] = r.Low
	}
	return &ClassAllocator[C]{
		ranges: ranges,
		cursor: cursor,
		taken:  make(map[int]bool),
	}
}

// Reserve claims an explicit slot for class c.
func (a *ClassAllocator[C]) Reserve(c C, n int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.ranges[c]
	if !ok {
		return fmt.Errorf("protocolmapping: no range configured for class %v", c)
	}
	if !r.contains(n) {
		return ErrOutOfRange
	}
	a.taken[n] = true
	return nil
}

// Allocate returns the next free slot for class c.
func (a *ClassAllocator[C]) Allocate(c C) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.ranges[c]
	if !ok {
		return 0, fmt.Errorf("protocolmapping: no range configured for class %v", c)
	}

	start := a.cursor[c]
	if start < r.Low || start > r.High {
		start = r.Low
	}

	for n := start; n <= r.High; n++ {
		if !a.taken[n] {
			a.taken[n] = true
			a.cursor[c] = n + 1
			return n, nil
		}
	}
	for n := r.Low; n < start; n++ {
		if !a.taken[n] {
			a.taken[n] = true
			a.cursor[c] = n + 1
			return n, nil
		}
	}
	return 0, ErrRangeExhausted
}

// Release frees a previously allocated or reserved slot.
func (a *ClassAllocator[C]) Release(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.taken, n)
}
