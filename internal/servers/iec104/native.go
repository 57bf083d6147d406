// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build iec104lib

// Package iec104, built with the iec104lib tag, takes the ASDU type-id
// octet from riclolsen/go-iecp5's asdu.TypeID constants instead of the
// fallback's hand-rolled table. Cause of transmission, common address and
// information object address are still encoded by hand, and APCI framing
// and the accept/broadcast loop are copies of the fallback's: the library
// supplies type ids only, not a transport.
package iec104

import (
	"encoding/binary"
	"math"
	"net"
	"sync"
	"time"

	"github.com/riclolsen/go-iecp5/asdu"

	"github.com/plantscope/dataservice/internal/datastore"
	"github.com/plantscope/dataservice/internal/metrics"
	protoiec104 "github.com/plantscope/dataservice/internal/protocolmapping/iec104"
	"github.com/plantscope/dataservice/pkg/log"
)

const apciStart = 0x68

var startDTAct = [6]byte{apciStart, 0x04, 0x07, 0x00, 0x00, 0x00}
var startDTCon = [6]byte{apciStart, 0x04, 0x0b, 0x00, 0x00, 0x00}
var testFRAct = [6]byte{apciStart, 0x04, 0x43, 0x00, 0x00, 0x00}
var testFRCon = [6]byte{apciStart, 0x04, 0x83, 0x00, 0x00, 0x00}

func libTypeID(t protoiec104.ASDUType) asdu.TypeID {
	switch t {
	case protoiec104.MMeNC1, protoiec104.MMeNF1:
		return asdu.M_ME_NC_1
	case protoiec104.MMeNB1:
		return asdu.M_ME_NB_1
	case protoiec104.MSpNA1:
		return asdu.M_SP_NA_1
	case protoiec104.MMeNA1:
		return asdu.M_ME_NA_1
	default:
		return asdu.M_ME_NC_1
	}
}

// Server is the library-backed IEC-104 server. Its accept loop, client
// bookkeeping and broadcast cadence mirror the fallback server exactly;
// only the ASDU type id is taken from asdu.
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

func New(addr string, store *datastore.DataStore, mapping *protoiec104.Registry) *Server {
	return &Server{
		addr:    addr,
		store:   store,
		mapping: mapping,
		sendSeq: make(map[net.Conn]uint16),
		recvSeq: make(map[net.Conn]uint16),
	}
}

func (s *Server) Start(stop <-chan struct{}) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln

	log.Infof("iec104: using riclolsen/go-iecp5 ASDU type definitions")

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
		payload, err := encodePayload(e, v.Interface())
		if err != nil {
			log.Warnf("iec104: encode %s: %v", e.Key, err)
			metrics.PublishErrors.WithLabelValues("iec104").Inc()
			ok = false
			continue
		}
		asduBytes := buildASDU(e, payload)

		for _, c := range conns {
			frame := s.frameIFrame(c, asduBytes)
			if _, err := c.Write(frame); err != nil {
				s.prune(c)
			}
		}
	}
	if ok {
		metrics.PublishTicks.WithLabelValues("iec104").Inc()
	}
}

func (s *Server) frameIFrame(conn net.Conn, asduBytes []byte) []byte {
	s.mu.Lock()
	send := s.sendSeq[conn]
	recv := s.recvSeq[conn]
	s.sendSeq[conn] = send + 1
	s.mu.Unlock()

	apci := make([]byte, 6)
	apci[0] = apciStart
	apci[1] = byte(len(asduBytes) + 4)
	binary.LittleEndian.PutUint16(apci[2:4], send<<1)
	binary.LittleEndian.PutUint16(apci[4:6], recv<<1)
	return append(apci, asduBytes...)
}

// buildASDU renders the ASDU header using the library's TypeID constants
// so the type-id octet can never drift from asdu's own definitions.
func buildASDU(e protoiec104.Entry, payload []byte) []byte {
	header := make([]byte, 6)
	header[0] = byte(libTypeID(e.Type))
	header[1] = 0x01
	header[2] = e.COT
	header[3] = 0x00
	binary.LittleEndian.PutUint16(header[4:6], uint16(e.CommonAddress))

	ioa := make([]byte, 3)
	ioa[0] = byte(e.IOA)
	ioa[1] = byte(e.IOA >> 8)
	ioa[2] = byte(e.IOA >> 16)

	out := append(header, ioa...)
	out = append(out, payload...)
	return out
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
		return buf, nil
	case protoiec104.MMeNB1:
		n, ok := asInt(raw)
		if !ok {
			return nil, errNotNumeric
		}
		buf := make([]byte, 3)
		binary.LittleEndian.PutUint16(buf[0:2], uint16(int16(n)))
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
		buf := make([]byte, 3)
		binary.LittleEndian.PutUint16(buf[0:2], uint16(int16(f*32767)))
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
