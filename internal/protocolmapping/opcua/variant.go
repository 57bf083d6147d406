// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opcua

import (
	"fmt"

	"github.com/gopcua/opcua/ua"
)

// ToVariant renders raw (a datastore.Value.Interface() result) as the
// ua.Variant matching e's pinned type, coercing across Go numeric kinds
// where needed but never changing e.Type itself.
func ToVariant(e Entry, raw any) (*ua.Variant, error) {
	switch e.Type {
	case Double:
		f, ok := asFloat(raw)
		if !ok {
			return nil, fmt.Errorf("opcua: %v is not numeric for Double node %s", raw, e.Key)
		}
		return ua.MustVariant(f), nil
	case FloatV:
		f, ok := asFloat(raw)
		if !ok {
			return nil, fmt.Errorf("opcua: %v is not numeric for Float node %s", raw, e.Key)
		}
		return ua.MustVariant(float32(f)), nil
	case Int32V:
		n, ok := asInt(raw)
		if !ok {
			return nil, fmt.Errorf("opcua: %v is not an integer for Int32 node %s", raw, e.Key)
		}
		return ua.MustVariant(int32(n)), nil
	case Int16V:
		n, ok := asInt(raw)
		if !ok {
			return nil, fmt.Errorf("opcua: %v is not an integer for Int16 node %s", raw, e.Key)
		}
		return ua.MustVariant(int16(n)), nil
	case ByteV:
		n, ok := asInt(raw)
		if !ok {
			return nil, fmt.Errorf("opcua: %v is not an integer for Byte node %s", raw, e.Key)
		}
		return ua.MustVariant(byte(n)), nil
	case SByteV:
		n, ok := asInt(raw)
		if !ok {
			return nil, fmt.Errorf("opcua: %v is not an integer for SByte node %s", raw, e.Key)
		}
		return ua.MustVariant(int8(n)), nil
	case BooleanV:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("opcua: %v is not a bool for Boolean node %s", raw, e.Key)
		}
		return ua.MustVariant(b), nil
	case StringV:
		s, ok := raw.(string)
		if !ok {
			s = fmt.Sprintf("%v", raw)
		}
		return ua.MustVariant(s), nil
	default:
		return nil, fmt.Errorf("opcua: unsupported variant type for node %s", e.Key)
	}
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
