// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package modbus

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapAutoAllocatesWithinTypeRange(t *testing.T) {
	r := New()

	e, err := r.Map("tank.level", Float32, 0, 1.0, BigEndian, "m")
	require.NoError(t, err)
	assert.True(t, e.Address >= 40001 && e.Address <= 41000)

	e2, err := r.Map("pump.count", Int32, 0, 1.0, BigEndian, "")
	require.NoError(t, err)
	assert.True(t, e2.Address >= 41001 && e2.Address <= 42000)
}

func TestMapRejectsAddressOutsideTypeRange(t *testing.T) {
	r := New()
	_, err := r.Map("bad", Float32, 42001, 1.0, BigEndian, "")
	assert.Error(t, err)
}

func TestEncodeFloat32RoundTripsBigEndian(t *testing.T) {
	e := Entry{Type: Float32, ScalingFactor: 1.0, Endian: BigEndian}
	words, err := Encode(e, 21.5)
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, []uint16{0x41AC, 0x0000}, words)
	assert.Equal(t, float32(21.5), math.Float32frombits(uint32(words[0])<<16|uint32(words[1])))
}

func TestEncodeAppliesScalingFactor(t *testing.T) {
	e := Entry{Type: Int16, ScalingFactor: 10, Endian: BigEndian}
	words, err := Encode(e, 5)
	require.NoError(t, err)
	assert.Equal(t, uint16(50), words[0])
}

func TestEncodeStringPadsToRegisterWidth(t *testing.T) {
	e := Entry{Type: String8, Endian: BigEndian}
	words, err := Encode(e, "ok")
	require.NoError(t, err)
	assert.Len(t, words, 4)
}
