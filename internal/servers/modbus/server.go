// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package modbus is a minimal Modbus TCP server exposing the gateway's
// registered tags as holding/input registers (function codes 3 and 4).
// Register contents are refreshed once a second from the data store into
// an in-memory bank, which client requests read lock-free of the store.
package modbus

import (
	"encoding/binary"
	"net"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/plantscope/dataservice/internal/datastore"
	"github.com/plantscope/dataservice/internal/metrics"
	protomodbus "github.com/plantscope/dataservice/internal/protocolmapping/modbus"
	"github.com/plantscope/dataservice/pkg/log"
)

const (
	funcReadHoldingRegisters = 3
	funcReadInputRegisters   = 4
)

// Server is a Modbus TCP listener backed by a periodically refreshed
// register bank.
type Server struct {
	addr     string
	store    *datastore.DataStore
	mapping  *protomodbus.Registry
	mu       sync.RWMutex
	bank     map[int]uint16
	listener net.Listener
	sched    gocron.Scheduler
}

// New creates a Modbus TCP server listening on addr.
func New(addr string, store *datastore.DataStore, mapping *protomodbus.Registry) *Server {
	return &Server{
		addr:    addr,
		store:   store,
		mapping: mapping,
		bank:    make(map[int]uint16),
	}
}

// Start binds the listener, begins the 1Hz publish tick, and serves
// connections until stop is closed.
func (s *Server) Start(stop <-chan struct{}) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln

	sched, err := gocron.NewScheduler()
	if err != nil {
		ln.Close()
		return err
	}
	s.sched = sched
	if _, err := sched.NewJob(gocron.DurationJob(time.Second), gocron.NewTask(s.refresh)); err != nil {
		ln.Close()
		return err
	}
	sched.Start()

	go s.acceptLoop(stop)

	<-stop
	sched.Shutdown()
	ln.Close()
	return nil
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
				log.Warnf("modbus: accept error: %v", err)
				continue
			}
		}
		metrics.ConnectedClients.WithLabelValues("modbus").Inc()
		go s.handle(conn)
	}
}

// refresh re-encodes every mapped tag into the register bank. Encoding
// errors are logged and the affected registers are zeroed, never leaving
// stale data visible.
func (s *Server) refresh() {
	entries := s.mapping.All()
	next := make(map[int]uint16, len(entries)*2)

	for _, e := range entries {
		v := s.store.Read(e.Key)
		words, err := protomodbus.Encode(e, v.Interface())
		if err != nil {
			log.Warnf("modbus: encode %s: %v", e.Key, err)
			metrics.PublishErrors.WithLabelValues("modbus").Inc()
			for i := 0; i < e.Type.RegisterCount(); i++ {
				next[e.Address+i] = 0
			}
			continue
		}
		for i, w := range words {
			next[e.Address+i] = w
		}
	}

	s.mu.Lock()
	s.bank = next
	s.mu.Unlock()
	metrics.PublishTicks.WithLabelValues("modbus").Inc()
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	defer metrics.ConnectedClients.WithLabelValues("modbus").Dec()

	buf := make([]byte, 260)
	for {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		n, err := conn.Read(buf)
		if err != nil || n < 12 {
			return
		}
		resp := s.handleFrame(buf[:n])
		if resp == nil {
			continue
		}
		if _, err := conn.Write(resp); err != nil {
			return
		}
	}
}

// handleFrame parses a Modbus TCP ADU (MBAP header + PDU) and returns a
// response ADU, or nil if the request cannot be honored.
func (s *Server) handleFrame(frame []byte) []byte {
	txID := frame[0:2]
	unitID := frame[6]
	funcCode := frame[7]
	startAddr := int(binary.BigEndian.Uint16(frame[8:10]))
	quantity := int(binary.BigEndian.Uint16(frame[10:12]))

	switch funcCode {
	case funcReadHoldingRegisters, funcReadInputRegisters:
		return s.respondReadRegisters(txID, unitID, funcCode, startAddr, quantity)
	default:
		return s.exceptionResponse(txID, unitID, funcCode, 1) // illegal function
	}
}

func (s *Server) respondReadRegisters(txID []byte, unitID, funcCode byte, startAddr, quantity int) []byte {
	if quantity <= 0 || quantity > 125 {
		return s.exceptionResponse(txID, unitID, funcCode, 3) // illegal data value
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	payload := make([]byte, 1+quantity*2)
	payload[0] = byte(quantity * 2)
	for i := 0; i < quantity; i++ {
		// Modbus register addresses on the wire are 0-based offsets from
		// the 40001-style base address used throughout the mapping table.
		v := s.bank[startAddr+40001+i]
		binary.BigEndian.PutUint16(payload[1+i*2:3+i*2], v)
	}

	pdu := append([]byte{funcCode}, payload...)
	return buildADU(txID, unitID, pdu)
}

func (s *Server) exceptionResponse(txID []byte, unitID, funcCode byte, code byte) []byte {
	pdu := []byte{funcCode | 0x80, code}
	return buildADU(txID, unitID, pdu)
}

func buildADU(txID []byte, unitID byte, pdu []byte) []byte {
	header := make([]byte, 7)
	copy(header[0:2], txID)
	binary.BigEndian.PutUint16(header[4:6], uint16(len(pdu)+1))
	header[6] = unitID
	return append(header, pdu...)
}
