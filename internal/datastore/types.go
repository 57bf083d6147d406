// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package datastore implements the gateway's core: a thread-safe, typed,
// in-memory store of tags (DataPoints) with stable numeric addresses,
// per-tag history, quality tracking, and change notification. Every
// ProtocolServer samples the world through this package.
package datastore

import (
	"errors"
	"fmt"
	"strconv"
)

// DataType is the tagged variant discriminator for a tag's value. Callers
// never branch on the Go runtime type of a value; they ask a Value for its
// Kind and use the matching typed accessor.
type DataType int

const (
	Float DataType = iota
	Int
	Bool
	String
	Raw
)

func (t DataType) String() string {
	switch t {
	case Float:
		return "float"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Raw:
		return "raw"
	default:
		return "unknown"
	}
}

// ParseDataType maps the wire/config spelling to a DataType.
func ParseDataType(s string) (DataType, error) {
	switch s {
	case "float":
		return Float, nil
	case "int":
		return Int, nil
	case "bool":
		return Bool, nil
	case "string":
		return String, nil
	case "raw":
		return Raw, nil
	default:
		return 0, fmt.Errorf("unknown data type %q", s)
	}
}

// Quality describes whether the last write to a tag was trusted.
type Quality int

const (
	GOOD Quality = iota
	BAD
	UNCERTAIN
)

func (q Quality) String() string {
	switch q {
	case GOOD:
		return "GOOD"
	case BAD:
		return "BAD"
	case UNCERTAIN:
		return "UNCERTAIN"
	default:
		return "UNKNOWN"
	}
}

// Value is a tagged-union sample. Only the field matching Kind is
// meaningful; the typed accessors never inspect Go's runtime type of a
// stored value after coercion has happened once at the write boundary.
type Value struct {
	Kind DataType
	F    float64
	I    int64
	B    bool
	S    string
	R    []byte
}

// Interface returns the value as an interface{} suitable for JSON encoding
// or for protocol encoders that need to type-switch on the *data type*
// (never the raw Go runtime type) when building their wire representation.
func (v Value) Interface() any {
	switch v.Kind {
	case Float:
		return v.F
	case Int:
		return v.I
	case Bool:
		return v.B
	case String:
		return v.S
	case Raw:
		return v.R
	default:
		return nil
	}
}

// ZeroValue returns the neutral zero for a data type, used whenever a read
// targets an unknown key/address (§4.1: "read... returns a neutral zero").
func ZeroValue(t DataType) Value {
	return Value{Kind: t}
}

var ErrCoercion = errors.New("datastore: value cannot be coerced to data type")

// Coerce converts an arbitrary raw value (as decoded from JSON, or written
// natively by a protocol server) into a Value of the given data type. It
// returns ErrCoercion, wrapped with more detail, when the conversion is not
// possible — the caller (DataStore.write) is responsible for falling back
// to the tag's configured default and marking quality BAD.
func Coerce(t DataType, raw any) (Value, error) {
	switch t {
	case Float:
		f, ok := coerceFloat(raw)
		if !ok {
			return Value{}, fmt.Errorf("%w: %v is not a float", ErrCoercion, raw)
		}
		return Value{Kind: Float, F: f}, nil
	case Int:
		i, ok := coerceInt(raw)
		if !ok {
			return Value{}, fmt.Errorf("%w: %v is not an int", ErrCoercion, raw)
		}
		return Value{Kind: Int, I: i}, nil
	case Bool:
		b, ok := coerceBool(raw)
		if !ok {
			return Value{}, fmt.Errorf("%w: %v is not a bool", ErrCoercion, raw)
		}
		return Value{Kind: Bool, B: b}, nil
	case String:
		s, ok := coerceString(raw)
		if !ok {
			return Value{}, fmt.Errorf("%w: %v is not a string", ErrCoercion, raw)
		}
		return Value{Kind: String, S: s}, nil
	case Raw:
		r, ok := coerceRaw(raw)
		if !ok {
			return Value{}, fmt.Errorf("%w: %v is not raw bytes", ErrCoercion, raw)
		}
		return Value{Kind: Raw, R: r}, nil
	default:
		return Value{}, fmt.Errorf("%w: unknown data type %v", ErrCoercion, t)
	}
}

func coerceFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func coerceInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func coerceBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case float64:
		return v != 0, true
	case int:
		return v != 0, true
	case int64:
		return v != 0, true
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}

func coerceString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

func coerceRaw(raw any) ([]byte, bool) {
	switch v := raw.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	default:
		return nil, false
	}
}
