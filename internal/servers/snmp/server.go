// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package snmp is a read-only SNMPv2c agent exposing the gateway's tags as
// scalar OIDs under a single enterprise arc. It answers GetRequest and
// GetNextRequest PDUs only; SetRequest is rejected with noSuchName, since
// the gateway's tags are written through the Modbus/IEC-104/OPC-UA/IPC
// surfaces instead.
package snmp

import (
	"fmt"
	"math"
	"net"
	"sort"
	"time"

	"github.com/plantscope/dataservice/internal/datastore"
	"github.com/plantscope/dataservice/internal/metrics"
	protosnmp "github.com/plantscope/dataservice/internal/protocolmapping/snmp"
	"github.com/plantscope/dataservice/pkg/log"
)

const (
	tagInteger     = 0x02
	tagOctetString = 0x04
	tagNull        = 0x05
	tagOID         = 0x06
	tagSequence    = 0x30
	tagGauge32     = 0x42
	tagCounter32   = 0x41
	tagCounter64   = 0x46

	pduGetRequest     = 0xA0
	pduGetNextRequest = 0xA1
	pduGetResponse    = 0xA2
	pduSetRequest     = 0xA3

	errNoError    = 0
	errNoSuchName = 2
)

// DefaultCommunity is the only community string this agent accepts.
const DefaultCommunity = "public"

// Server is a read-only SNMPv2c agent.
type Server struct {
	addr      string
	community string
	store     *datastore.DataStore
	mapping   *protosnmp.Registry
	conn      *net.UDPConn
}

// New creates an SNMP agent listening on addr (host:port) for UDP datagrams.
func New(addr string, store *datastore.DataStore, mapping *protosnmp.Registry) *Server {
	return &Server{addr: addr, community: DefaultCommunity, store: store, mapping: mapping}
}

// Start binds the UDP socket and serves requests until stop is closed.
func (s *Server) Start(stop <-chan struct{}) error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.conn = conn
	log.Infof("snmp: listening on %s, community %q, subtree %s", s.addr, s.community, protosnmp.EnterpriseOID)

	done := make(chan struct{})
	go func() {
		<-stop
		conn.Close()
		close(done)
	}()

	buf := make([]byte, 65535)
	for {
		conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-done:
				return nil
			default:
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				continue
			}
		}
		metrics.PublishTicks.WithLabelValues("snmp").Inc()
		resp, herr := s.handleDatagram(buf[:n])
		if herr != nil {
			log.Warnf("snmp: %v", herr)
			metrics.PublishErrors.WithLabelValues("snmp").Inc()
			continue
		}
		if resp != nil {
			conn.WriteToUDP(resp, raddr)
		}
	}
}

// oidEntry is one row of the agent's sorted MIB view.
type oidEntry struct {
	oid   string
	parts []int
	entry protosnmp.Entry
}

func (s *Server) mibView() []oidEntry {
	all := s.mapping.All()
	out := make([]oidEntry, 0, len(all))
	for _, e := range all {
		parts, err := splitOID(e.OID())
		if err != nil {
			continue
		}
		out = append(out, oidEntry{oid: e.OID(), parts: parts, entry: e})
	}
	sort.Slice(out, func(i, j int) bool { return compareParts(out[i].parts, out[j].parts) < 0 })
	return out
}

func compareParts(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] - b[i]
		}
	}
	return len(a) - len(b)
}

func (s *Server) handleDatagram(pkt []byte) ([]byte, error) {
	msg, rest, err := decodeTLV(pkt)
	if err != nil || msg.Tag != tagSequence {
		return nil, fmt.Errorf("malformed message")
	}
	_ = rest

	version, body, err := decodeTLV(msg.Bytes)
	if err != nil || version.Tag != tagInteger {
		return nil, fmt.Errorf("malformed version")
	}
	community, body, err := decodeTLV(body)
	if err != nil || community.Tag != tagOctetString {
		return nil, fmt.Errorf("malformed community")
	}
	if string(community.Bytes) != s.community {
		return nil, fmt.Errorf("bad community")
	}
	pdu, _, err := decodeTLV(body)
	if err != nil {
		return nil, fmt.Errorf("malformed pdu")
	}

	reqID, errStatus, errIndex, varbinds, err := decodePDU(pdu.Bytes)
	if err != nil {
		return nil, err
	}
	_ = errStatus
	_ = errIndex

	view := s.mibView()

	switch pdu.Tag {
	case pduGetRequest:
		return s.respondGet(reqID, varbinds, view, decodeInt(version.Bytes)), nil
	case pduGetNextRequest:
		return s.respondGetNext(reqID, varbinds, view, decodeInt(version.Bytes)), nil
	case pduSetRequest:
		return s.respondError(reqID, errNoSuchName, 1, varbinds, decodeInt(version.Bytes)), nil
	default:
		return nil, fmt.Errorf("unsupported pdu tag 0x%x", pdu.Tag)
	}
}

type varbind struct {
	oid string
}

func decodePDU(buf []byte) (reqID int64, errStatus, errIndex int, binds []varbind, err error) {
	reqTLV, rest, err := decodeTLV(buf)
	if err != nil {
		return 0, 0, 0, nil, err
	}
	reqID = decodeInt(reqTLV.Bytes)

	esTLV, rest, err := decodeTLV(rest)
	if err != nil {
		return 0, 0, 0, nil, err
	}
	errStatus = int(decodeInt(esTLV.Bytes))

	eiTLV, rest, err := decodeTLV(rest)
	if err != nil {
		return 0, 0, 0, nil, err
	}
	errIndex = int(decodeInt(eiTLV.Bytes))

	vbList, _, err := decodeTLV(rest)
	if err != nil || vbList.Tag != tagSequence {
		return 0, 0, 0, nil, fmt.Errorf("malformed varbind list")
	}

	buf2 := vbList.Bytes
	for len(buf2) > 0 {
		vb, next, err := decodeTLV(buf2)
		if err != nil || vb.Tag != tagSequence {
			break
		}
		nameTLV, _, err := decodeTLV(vb.Bytes)
		if err != nil || nameTLV.Tag != tagOID {
			buf2 = next
			continue
		}
		binds = append(binds, varbind{oid: decodeOID(nameTLV.Bytes)})
		buf2 = next
	}
	return reqID, errStatus, errIndex, binds, nil
}

func (s *Server) respondGet(reqID int64, binds []varbind, view []oidEntry, version int64) []byte {
	var outBinds [][]byte
	errIndex := 0
	errStatus := errNoError

	for i, vb := range binds {
		found := false
		for _, row := range view {
			if row.oid == vb.oid {
				outBinds = append(outBinds, encodeVarbind(row.oid, row.entry, s.store.Read(row.entry.Key)))
				found = true
				break
			}
		}
		if !found {
			if errStatus == errNoError {
				errStatus = errNoSuchName
				errIndex = i + 1
			}
			outBinds = append(outBinds, encodeVarbindNull(vb.oid))
		}
	}
	return encodeMessage(version, s.community, pduGetResponse, reqID, errStatus, errIndex, outBinds)
}

func (s *Server) respondGetNext(reqID int64, binds []varbind, view []oidEntry, version int64) []byte {
	var outBinds [][]byte
	errIndex := 0
	errStatus := errNoError

	for i, vb := range binds {
		reqParts, err := splitOID(vb.oid)
		found := false
		if err == nil {
			for _, row := range view {
				if compareParts(row.parts, reqParts) > 0 {
					outBinds = append(outBinds, encodeVarbind(row.oid, row.entry, s.store.Read(row.entry.Key)))
					found = true
					break
				}
			}
		}
		if !found {
			if errStatus == errNoError {
				errStatus = errNoSuchName
				errIndex = i + 1
			}
			outBinds = append(outBinds, encodeVarbindNull(vb.oid))
		}
	}
	return encodeMessage(version, s.community, pduGetResponse, reqID, errStatus, errIndex, outBinds)
}

func (s *Server) respondError(reqID int64, status, index int, binds []varbind, version int64) []byte {
	var outBinds [][]byte
	for _, vb := range binds {
		outBinds = append(outBinds, encodeVarbindNull(vb.oid))
	}
	return encodeMessage(version, s.community, pduGetResponse, reqID, status, index, outBinds)
}

func encodeVarbindNull(oid string) []byte {
	oidBytes, _ := encodeOID(oid)
	name := encodeTLV(tagOID, oidBytes)
	val := encodeTLV(tagNull, nil)
	return encodeTLV(tagSequence, append(name, val...))
}

func encodeVarbind(oid string, e protosnmp.Entry, v datastore.Value) []byte {
	oidBytes, _ := encodeOID(oid)
	name := encodeTLV(tagOID, oidBytes)

	var val []byte
	switch e.Type {
	case protosnmp.TypeInteger:
		n, _ := asInt(v.Interface())
		val = encodeTLV(tagInteger, encodeInt(n))
	case protosnmp.TypeGauge32:
		n, _ := asInt(v.Interface())
		val = encodeTLV(tagGauge32, encodeInt(n))
	case protosnmp.TypeCounter32:
		n, _ := asInt(v.Interface())
		val = encodeTLV(tagCounter32, encodeInt(n))
	case protosnmp.TypeCounter64:
		n, _ := asInt(v.Interface())
		val = encodeTLV(tagCounter64, encodeInt(n))
	case protosnmp.TypeOctetString:
		val = encodeTLV(tagOctetString, []byte(asString(v.Interface())))
	default:
		val = encodeTLV(tagNull, nil)
	}

	return encodeTLV(tagSequence, append(name, val...))
}

func encodeMessage(version int64, community string, pduTag byte, reqID int64, errStatus, errIndex int, binds [][]byte) []byte {
	var vbList []byte
	for _, b := range binds {
		vbList = append(vbList, b...)
	}
	vbListTLV := encodeTLV(tagSequence, vbList)

	pduBody := encodeTLV(tagInteger, encodeInt(reqID))
	pduBody = append(pduBody, encodeTLV(tagInteger, encodeInt(int64(errStatus)))...)
	pduBody = append(pduBody, encodeTLV(tagInteger, encodeInt(int64(errIndex)))...)
	pduBody = append(pduBody, vbListTLV...)
	pdu := encodeTLV(pduTag, pduBody)

	msgBody := encodeTLV(tagInteger, encodeInt(version))
	msgBody = append(msgBody, encodeTLV(tagOctetString, []byte(community))...)
	msgBody = append(msgBody, pdu...)

	return encodeTLV(tagSequence, msgBody)
}

func asInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(math.Round(v)), true
	case float32:
		return int64(math.Round(float64(v))), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func asString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", raw)
	}
}
