// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package snmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeOIDRoundTrips(t *testing.T) {
	oid := "1.3.6.1.4.1.55555.1.7.0"
	encoded, err := encodeOID(oid)
	require.NoError(t, err)
	assert.Equal(t, oid, decodeOID(encoded))
}

func TestEncodeDecodeIntRoundTrips(t *testing.T) {
	for _, v := range []int64{0, 1, 127, 128, 255, 256, -1, -128, 70000} {
		encoded := encodeInt(v)
		assert.Equal(t, v, decodeInt(encoded))
	}
}

func TestDecodeTLVHandlesLongForm(t *testing.T) {
	value := make([]byte, 200)
	tlv := encodeTLV(tagOctetString, value)

	decoded, rest, err := decodeTLV(tlv)
	require.NoError(t, err)
	assert.Equal(t, byte(tagOctetString), decoded.Tag)
	assert.Len(t, decoded.Bytes, 200)
	assert.Empty(t, rest)
}

func TestDecodeTLVRejectsTruncatedInput(t *testing.T) {
	_, _, err := decodeTLV([]byte{0x04, 0x05, 0x01})
	assert.Error(t, err)
}
