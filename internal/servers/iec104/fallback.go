// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !iec104lib

// Package iec104 is a byte-level IEC 60870-5-104 server. By default (this
// file) it runs the built-in fallback encoder, grounded directly on the
// wire format (start byte 0x68, U/S/I frame control octets, little-endian
// ASDU address and information object address). Building with the
// iec104lib tag switches to a library-backed encoder instead (native.go),
// keeping the exact same exported Server/New/Start surface.
package iec104

import (
	"encoding/binary"
	"math"
	"net"
	"sync"
	"time"

	"github.com/plantscope/dataservice/internal/datastore"
	"github.com/plantscope/dataservice/internal/metrics"
	protoiec104 "github.com/plantscope/dataservice/internal/protocolmapping/iec104"
	"github.com/plantscope/dataservice/pkg/log"
)

const apciStart = 0x68

// U-frame control octets (companion standard 104, subclause 5.3/5.2).
var startDTAct = [6]byte{apciStart, 0x04, 0x07, 0x00, 0x00, 0x00}
var startDTCon = [6]byte{apciStart, 0x04, 0x0b, 0x00, 0x00, 0x00}
var testFRAct = [6]byte{apciStart, 0x04, 0x43, 0x00, 0x00, 0x00}
var testFRCon = [6]byte{apciStart, 0x04, 0x83, 0x00, 0x00, 0x00}

// Server is a fallback IEC-104 server: one non-blocking accept loop, a
// client list pruned on send failure, and a broadcast tick that encodes
// every mapped measurement as an M_ME_NC_1/M_SP_NA_1/... ASDU.
type Server struct {
	addr     string
	store    *datastore.DataStore
	mapping  *protoiec104.Registry
	listener net.Listener

	mu      sync.Mutex
	clients []net.Conn
	sendSeq map[net.Conn]uint16
	recvSeq map[net.Conn]uint16
}

// New creates a fallback IEC-104 server listening on addr.
func New(addr string, store *datastore.DataStore, mapping *protoiec104.Registry) *Server {
	return &Server{
		addr:    addr,
		store:   store,
		mapping: mapping,
		sendSeq: make(map[net.Conn]uint16),
		recvSeq: make(map[net.Conn]uint16),
	}
}

// Start binds the listener, begins the 2-second broadcast tick, and
// serves connections until stop is closed.
func (s *Server) Start(stop <-chan struct{}) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln

	log.Infof("iec104: using built-in fallback encoder")

	go s.acceptLoop(stop)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			ln.Close()
			s.closeAll()
			return nil
		case <-ticker.C:
			s.broadcast()
		}
	}
}

func (s *Server) acceptLoop(stop <-chan struct{}) {
	for {
		if tl, ok := s.listener.(*net.TCPListener); ok {
			tl.SetDeadline(time.Now().Add(1 * time.Second))
		}
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-stop:
				return
			default:
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				log.Warnf("iec104: accept error: %v", err)
				continue
			}
		}

		s.mu.Lock()
		s.clients = append(s.clients, conn)
		s.sendSeq[conn] = 0
		s.recvSeq[conn] = 0
		s.mu.Unlock()
		metrics.ConnectedClients.WithLabelValues("iec104").Inc()

		if _, err := conn.Write(startDTAct[:]); err != nil {
			log.Warnf("iec104: startdt-act to %s: %v", conn.RemoteAddr(), err)
			s.prune(conn)
			continue
		}

		go s.handshake(conn)
	}
}

// handshake reads U-frames (STARTDT/TESTFR) and answers them; it exits,
// leaving the connection registered for broadcast, once the peer stops
// sending control frames for a while or the connection errors out.
func (s *Server) handshake(conn net.Conn) {
	buf := make([]byte, 6)
	for {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		if _, err := readFull(conn, buf); err != nil {
			s.prune(conn)
			return
		}
		switch buf[2] {
		case startDTAct[2]:
			conn.Write(startDTCon[:])
		case testFRAct[2]:
			conn.Write(testFRCon[:])
		}
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *Server) prune(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.clients {
		if c == conn {
			s.clients = append(s.clients[:i], s.clients[i+1:]...)
			break
		}
	}
	delete(s.sendSeq, conn)
	delete(s.recvSeq, conn)
	conn.Close()
	metrics.ConnectedClients.WithLabelValues("iec104").Dec()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		c.Close()
	}
	s.clients = nil
}

// broadcast encodes every mapped tag as an ASDU and writes it to every
// connected client, pruning any connection whose write fails.
func (s *Server) broadcast() {
	entries := s.mapping.All()

	s.mu.Lock()
	conns := append([]net.Conn(nil), s.clients...)
	s.mu.Unlock()
	if len(conns) == 0 {
		return
	}

	ok := true
	for _, e := range entries {
		v := s.store.Read(e.Key)
		asdu, err := encodeASDU(e, v.Interface())
		if err != nil {
			log.Warnf("iec104: encode %s: %v", e.Key, err)
			metrics.PublishErrors.WithLabelValues("iec104").Inc()
			ok = false
			continue
		}

		for _, c := range conns {
			frame := s.frameIFrame(c, asdu)
			if _, err := c.Write(frame); err != nil {
				s.prune(c)
			}
		}
	}
	if ok {
		metrics.PublishTicks.WithLabelValues("iec104").Inc()
	}
}

func (s *Server) frameIFrame(conn net.Conn, asdu []byte) []byte {
	s.mu.Lock()
	send := s.sendSeq[conn]
	recv := s.recvSeq[conn]
	s.sendSeq[conn] = send + 1
	s.mu.Unlock()

	apci := make([]byte, 6)
	apci[0] = apciStart
	apci[1] = byte(len(asdu) + 4)
	binary.LittleEndian.PutUint16(apci[2:4], send<<1)
	binary.LittleEndian.PutUint16(apci[4:6], recv<<1)
	return append(apci, asdu...)
}

// encodeASDU renders one tag as a monitor-direction ASDU: type id, a
// variable structure qualifier of 1 (single object), cause of
// transmission, originator, common address, information object address,
// and the type-specific payload.
func encodeASDU(e protoiec104.Entry, raw any) ([]byte, error) {
	header := make([]byte, 6)
	header[0] = e.Type.TypeID()
	header[1] = 0x01 // SQ=0, 1 object
	header[2] = e.COT
	header[3] = 0x00 // originator address
	binary.LittleEndian.PutUint16(header[4:6], uint16(e.CommonAddress))

	ioa := make([]byte, 3)
	ioa[0] = byte(e.IOA)
	ioa[1] = byte(e.IOA >> 8)
	ioa[2] = byte(e.IOA >> 16)

	payload, err := encodePayload(e, raw)
	if err != nil {
		return nil, err
	}

	out := append(header, ioa...)
	out = append(out, payload...)
	return out, nil
}

func encodePayload(e protoiec104.Entry, raw any) ([]byte, error) {
	switch e.Type {
	case protoiec104.MMeNC1, protoiec104.MMeNF1:
		f, ok := asFloat(raw)
		if !ok {
			return nil, errNotNumeric
		}
		buf := make([]byte, 5)
		binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(float32(f)))
		buf[4] = 0 // quality descriptor: good
		return buf, nil

	case protoiec104.MMeNB1:
		n, ok := asInt(raw)
		if !ok {
			return nil, errNotNumeric
		}
		buf := make([]byte, 3)
		binary.LittleEndian.PutUint16(buf[0:2], uint16(int16(n)))
		buf[2] = 0
		return buf, nil

	case protoiec104.MSpNA1:
		b, ok := raw.(bool)
		if !ok {
			return nil, errNotBool
		}
		var v byte
		if b {
			v = 1
		}
		return []byte{v}, nil

	case protoiec104.MMeNA1:
		f, ok := asFloat(raw)
		if !ok {
			return nil, errNotNumeric
		}
		normalized := int16(f * 32767)
		buf := make([]byte, 3)
		binary.LittleEndian.PutUint16(buf[0:2], uint16(normalized))
		buf[2] = 0
		return buf, nil

	default:
		return nil, errUnsupportedASDU
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
