// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !iec104lib

package iec104

import (
	"encoding/binary"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantscope/dataservice/internal/datastore"
	protoiec104 "github.com/plantscope/dataservice/internal/protocolmapping/iec104"
)

func TestAcceptSendsStartDTActImmediately(t *testing.T) {
	store := datastore.New(nil, 10)
	mapping := protoiec104.New()

	s := New("127.0.0.1:0", store, mapping)
	ln, err := net.Listen("tcp", s.addr)
	require.NoError(t, err)
	s.listener = ln

	stop := make(chan struct{})
	go s.acceptLoop(stop)
	defer close(stop)

	conn, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 6)
	_, err = readFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, startDTAct[:], buf)
}

func TestEncodeASDUShortFloatRoundTrips(t *testing.T) {
	e := protoiec104.Entry{Key: "boiler.temp", Type: protoiec104.MMeNC1, IOA: 1001, CommonAddress: 1, COT: 3}
	asdu, err := encodeASDU(e, 21.5)
	require.NoError(t, err)

	assert.Equal(t, e.Type.TypeID(), asdu[0])
	assert.Equal(t, byte(3), asdu[2]) // cause of transmission

	ioa := int(asdu[6]) | int(asdu[7])<<8 | int(asdu[8])<<16
	assert.Equal(t, 1001, ioa)

	bits := binary.LittleEndian.Uint32(asdu[9:13])
	assert.InDelta(t, 21.5, float64(math.Float32frombits(bits)), 0.001)
}

func TestEncodeASDURejectsNonBoolForSinglePoint(t *testing.T) {
	e := protoiec104.Entry{Key: "pump.running", Type: protoiec104.MSpNA1, IOA: 3001, CommonAddress: 1, COT: 3}
	_, err := encodeASDU(e, "not-a-bool")
	assert.Error(t, err)
}

func TestEncodeASDUScaledValueAppliesSixteenBitLayout(t *testing.T) {
	e := protoiec104.Entry{Key: "pump.count", Type: protoiec104.MMeNB1, IOA: 2001, CommonAddress: 1, COT: 3}
	asdu, err := encodeASDU(e, int64(1234))
	require.NoError(t, err)
	v := int16(binary.LittleEndian.Uint16(asdu[9:11]))
	assert.Equal(t, int16(1234), v)
}
