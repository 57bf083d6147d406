// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package modbus

import (
	"encoding/binary"
	"fmt"
	"math"
)

// RegisterCount reports how many 16-bit registers an entry of this type
// occupies on the wire.
func (t RegisterType) RegisterCount() int {
	switch t {
	case Float32, Int32:
		return 2
	case Int16, Bool:
		return 1
	case String8:
		return 4 // 8 bytes
	case String16:
		return 8 // 16 bytes
	default:
		return 1
	}
}

func (e Entry) order() binary.ByteOrder {
	if e.Endian == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Encode renders raw into the register words this entry occupies. Numeric
// values are multiplied by e.ScalingFactor here; callers pass them unscaled.
func Encode(e Entry, raw any) ([]uint16, error) {
	order := e.order()

	switch e.Type {
	case Float32:
		f, ok := asFloat(raw)
		if !ok {
			return nil, fmt.Errorf("modbus: %v is not numeric", raw)
		}
		f *= e.ScalingFactor
		var buf [4]byte
		bits := math.Float32bits(float32(f))
		order.PutUint32(buf[:], bits)
		return wordsFromBytes(buf[:], order), nil

	case Int32:
		n, ok := asInt(raw)
		if !ok {
			return nil, fmt.Errorf("modbus: %v is not an integer", raw)
		}
		n = int64(float64(n) * e.ScalingFactor)
		var buf [4]byte
		order.PutUint32(buf[:], uint32(int32(n)))
		return wordsFromBytes(buf[:], order), nil

	case Int16:
		n, ok := asInt(raw)
		if !ok {
			return nil, fmt.Errorf("modbus: %v is not an integer", raw)
		}
		n = int64(float64(n) * e.ScalingFactor)
		return []uint16{uint16(int16(n))}, nil

	case Bool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("modbus: %v is not a bool", raw)
		}
		if b {
			return []uint16{1}, nil
		}
		return []uint16{0}, nil

	case String8, String16:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("modbus: %v is not a string", raw)
		}
		size := e.Type.RegisterCount() * 2
		buf := make([]byte, size)
		copy(buf, s)
		return wordsFromBytes(buf, order), nil

	default:
		return nil, fmt.Errorf("modbus: unsupported register type %s", e.Type)
	}
}

func wordsFromBytes(buf []byte, order binary.ByteOrder) []uint16 {
	words := make([]uint16, len(buf)/2)
	for i := range words {
		words[i] = order.Uint16(buf[i*2 : i*2+2])
	}
	return words
}

func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func asInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
