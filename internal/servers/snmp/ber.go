// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package snmp hand-rolls the small slice of BER (Basic Encoding Rules)
// needed for an SNMPv2c read-only agent: gosnmp is a client library whose
// marshal/unmarshal internals are not part of its public API, so only its
// exported Asn1BER type-tag constants are reused here (via the
// protocolmapping/snmp package); the actual byte encoding is ours.
package snmp

import (
	"errors"
	"fmt"
)

var errTruncated = errors.New("snmp: truncated BER value")
var errUnsupportedTag = errors.New("snmp: unsupported BER tag")

// berTLV is one decoded BER tag-length-value triplet.
type berTLV struct {
	Tag   byte
	Bytes []byte
}

// decodeTLV reads one TLV starting at buf[0], returning it and the
// remaining bytes after it.
func decodeTLV(buf []byte) (berTLV, []byte, error) {
	if len(buf) < 2 {
		return berTLV{}, nil, errTruncated
	}
	tag := buf[0]
	length, lenBytes, err := decodeLength(buf[1:])
	if err != nil {
		return berTLV{}, nil, err
	}
	start := 1 + lenBytes
	end := start + length
	if end > len(buf) {
		return berTLV{}, nil, errTruncated
	}
	return berTLV{Tag: tag, Bytes: buf[start:end]}, buf[end:], nil
}

// decodeLength reads a BER length field (short or long form), returning
// the length and how many bytes it occupied.
func decodeLength(buf []byte) (int, int, error) {
	if len(buf) == 0 {
		return 0, 0, errTruncated
	}
	if buf[0]&0x80 == 0 {
		return int(buf[0]), 1, nil
	}
	n := int(buf[0] & 0x7f)
	if n == 0 || len(buf) < 1+n {
		return 0, 0, errTruncated
	}
	length := 0
	for i := 0; i < n; i++ {
		length = length<<8 | int(buf[1+i])
	}
	return length, 1 + n, nil
}

// encodeLength renders n in BER short or long form.
func encodeLength(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte(n & 0xff)}, b...)
		n >>= 8
	}
	return append([]byte{0x80 | byte(len(b))}, b...)
}

// encodeTLV renders tag+length+value.
func encodeTLV(tag byte, value []byte) []byte {
	out := []byte{tag}
	out = append(out, encodeLength(len(value))...)
	out = append(out, value...)
	return out
}

// encodeInt renders a BER INTEGER body (two's complement, minimal length).
func encodeInt(v int64) []byte {
	if v == 0 {
		return []byte{0}
	}
	var out []byte
	neg := v < 0
	for v != 0 && v != -1 {
		out = append([]byte{byte(v)}, out...)
		v >>= 8
	}
	if len(out) == 0 || (neg && out[0]&0x80 == 0) || (!neg && out[0]&0x80 != 0) {
		pad := byte(0x00)
		if neg {
			pad = 0xff
		}
		out = append([]byte{pad}, out...)
	}
	return out
}

func decodeInt(buf []byte) int64 {
	if len(buf) == 0 {
		return 0
	}
	var v int64
	if buf[0]&0x80 != 0 {
		v = -1
	}
	for _, b := range buf {
		v = v<<8 | int64(b)
	}
	return v
}

// encodeOID renders an OID string like "1.3.6.1.4.1.55555.1.1.0" as BER.
func encodeOID(oid string) ([]byte, error) {
	parts, err := splitOID(oid)
	if err != nil {
		return nil, err
	}
	if len(parts) < 2 {
		return nil, fmt.Errorf("snmp: OID %q too short", oid)
	}

	out := []byte{byte(parts[0]*40 + parts[1])}
	for _, p := range parts[2:] {
		out = append(out, encodeBase128(p)...)
	}
	return out, nil
}

func encodeBase128(v int) []byte {
	if v == 0 {
		return []byte{0}
	}
	var out []byte
	for v > 0 {
		out = append([]byte{byte(v & 0x7f)}, out...)
		v >>= 7
	}
	for i := 0; i < len(out)-1; i++ {
		out[i] |= 0x80
	}
	return out
}

func splitOID(oid string) ([]int, error) {
	var parts []int
	cur := 0
	has := false
	for i := 0; i <= len(oid); i++ {
		if i == len(oid) || oid[i] == '.' {
			if has {
				parts = append(parts, cur)
			}
			cur = 0
			has = false
			continue
		}
		c := oid[i]
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("snmp: invalid OID %q", oid)
		}
		cur = cur*10 + int(c-'0')
		has = true
	}
	return parts, nil
}

// decodeOID renders BER bytes back into dotted notation.
func decodeOID(buf []byte) string {
	if len(buf) == 0 {
		return ""
	}
	first := int(buf[0]) / 40
	second := int(buf[0]) % 40
	out := fmt.Sprintf("%d.%d", first, second)

	v := 0
	for _, b := range buf[1:] {
		v = v<<7 | int(b&0x7f)
		if b&0x80 == 0 {
			out += fmt.Sprintf(".%d", v)
			v = 0
		}
	}
	return out
}
