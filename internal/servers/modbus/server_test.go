// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package modbus

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantscope/dataservice/internal/datastore"
	protomodbus "github.com/plantscope/dataservice/internal/protocolmapping/modbus"
)

func frame(funcCode byte, startAddr, quantity int) []byte {
	f := make([]byte, 12)
	binary.BigEndian.PutUint16(f[0:2], 1) // transaction id
	binary.BigEndian.PutUint16(f[2:4], 0) // protocol id
	binary.BigEndian.PutUint16(f[4:6], 6) // length
	f[6] = 1                              // unit id
	f[7] = funcCode
	binary.BigEndian.PutUint16(f[8:10], uint16(startAddr))
	binary.BigEndian.PutUint16(f[10:12], uint16(quantity))
	return f
}

func TestHandleFrameReadsRefreshedRegisterValue(t *testing.T) {
	store := datastore.New(nil, 10)
	mapping := protomodbus.New()

	_, err := store.Register("boiler.temp", datastore.Float, datastore.RegisterOptions{})
	require.NoError(t, err)
	store.Write("boiler.temp", 21.5)

	entry, err := mapping.Map("boiler.temp", protomodbus.Float32, 0, 1.0, protomodbus.BigEndian, "C")
	require.NoError(t, err)

	s := New("127.0.0.1:0", store, mapping)
	s.refresh()

	req := frame(funcReadHoldingRegisters, entry.Address-40001, 2)
	resp := s.handleFrame(req)
	require.NotNil(t, resp)

	assert.Equal(t, byte(funcReadHoldingRegisters), resp[7])
	byteCount := resp[8]
	assert.Equal(t, byte(4), byteCount)
	assert.Equal(t, uint16(0x41AC), binary.BigEndian.Uint16(resp[9:11]))
	assert.Equal(t, uint16(0x0000), binary.BigEndian.Uint16(resp[11:13]))
}

func TestHandleFrameRejectsUnsupportedFunctionCode(t *testing.T) {
	store := datastore.New(nil, 10)
	mapping := protomodbus.New()
	s := New("127.0.0.1:0", store, mapping)

	req := frame(0x10, 0, 1) // write multiple registers: unsupported
	resp := s.handleFrame(req)
	require.NotNil(t, resp)
	assert.Equal(t, byte(0x10|0x80), resp[7])
}

func TestHandleFrameRejectsOversizedQuantity(t *testing.T) {
	store := datastore.New(nil, 10)
	mapping := protomodbus.New()
	s := New("127.0.0.1:0", store, mapping)

	req := frame(funcReadHoldingRegisters, 0, 200)
	resp := s.handleFrame(req)
	require.NotNil(t, resp)
	assert.Equal(t, byte(funcReadHoldingRegisters|0x80), resp[7])
	assert.Equal(t, byte(3), resp[8])
}
