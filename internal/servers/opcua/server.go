// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package opcua is a minimal OPC-UA server exposing the gateway's tags as
// variables under Objects/SensorData. It speaks a 4-byte big-endian
// length-prefixed JSON request/response framing (NodeIds in their string
// form, values taken from gopcua Variants) rather than the OPC UA binary
// protocol and secure-channel handshake: enough for a same-host or
// trusted-network client to read and write nodes without pulling in a
// certificate stack.
package opcua

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plantscope/dataservice/internal/datastore"
	"github.com/plantscope/dataservice/internal/metrics"
	protoopcua "github.com/plantscope/dataservice/internal/protocolmapping/opcua"
	"github.com/plantscope/dataservice/pkg/log"
)

// EndpointPrefix is the URL scheme of the informational endpoint advertised
// in logs; no TLS or discovery service is implemented.
const EndpointPrefix = "opc.tcp://"

// readRequest is a client request to read every node, or write a subset.
type readRequest struct {
	Writes map[string]json.RawMessage `json:"writes,omitempty"` // key -> new value
}

type readResponse struct {
	Nodes map[string]nodeView `json:"nodes"`
	OK    bool                `json:"ok"`
	Error string              `json:"error,omitempty"`
}

type nodeView struct {
	NodeID     string `json:"node_id"`
	FolderPath string `json:"folder_path"`
	Type       string `json:"type"`
	Value      any    `json:"value"`
}

// Server is the gateway's OPC-UA facade.
type Server struct {
	addr     string
	store    *datastore.DataStore
	mapping  *protoopcua.Registry
	listener net.Listener

	mu       sync.RWMutex
	snapshot map[string]nodeView
}

// New creates an OPC-UA server listening on addr (host:port, no scheme).
func New(addr string, store *datastore.DataStore, mapping *protoopcua.Registry) *Server {
	return &Server{
		addr:     addr,
		store:    store,
		mapping:  mapping,
		snapshot: make(map[string]nodeView),
	}
}

// Start binds the listener, begins the 1-second re-snapshot tick, and
// serves connections until stop is closed.
func (s *Server) Start(stop <-chan struct{}) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	log.Infof("opcua: endpoint %s%s, namespace %s", EndpointPrefix, s.addr, protoopcua.Namespace)

	go s.acceptLoop(stop)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			ln.Close()
			return nil
		case <-ticker.C:
			s.refresh()
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
				log.Warnf("opcua: accept error: %v", err)
				continue
			}
		}
		metrics.ConnectedClients.WithLabelValues("opcua").Inc()
		go s.handle(conn)
	}
}

// refresh materialises one node per tag in the current DataStore snapshot,
// lazily creating (and mapping) any tag not yet known to the registry, then
// re-renders every node's current value.
func (s *Server) refresh() {
	detail := s.store.DetailedSnapshot()
	next := make(map[string]nodeView, len(detail))

	for key, d := range detail {
		e, ok := s.mapping.Get(key)
		if !ok {
			typ := protoopcua.ClassifyDataType(d.DataType, key, d.Units)
			var err error
			e, err = s.mapping.EnsureNode(key, typ)
			if err != nil {
				log.Warnf("opcua: auto-create node for %s: %v", key, err)
				metrics.PublishErrors.WithLabelValues("opcua").Inc()
				continue
			}
		}

		v := s.store.Read(key)
		variant, err := protoopcua.ToVariant(e, v.Interface())
		var rendered any
		if err != nil {
			log.Warnf("opcua: encode %s: %v", key, err)
			metrics.PublishErrors.WithLabelValues("opcua").Inc()
			rendered = nil
		} else {
			rendered = variant.Value()
		}
		next[key] = nodeView{
			NodeID:     e.NodeID.String(),
			FolderPath: e.FolderPath,
			Type:       typeName(e.Type),
			Value:      rendered,
		}
	}

	s.mu.Lock()
	s.snapshot = next
	s.mu.Unlock()
	metrics.PublishTicks.WithLabelValues("opcua").Inc()
}

func typeName(t protoopcua.VariantType) string {
	switch t {
	case protoopcua.Double:
		return "Double"
	case protoopcua.Int32V:
		return "Int32"
	case protoopcua.Int16V:
		return "Int16"
	case protoopcua.BooleanV:
		return "Boolean"
	case protoopcua.StringV:
		return "String"
	case protoopcua.FloatV:
		return "Float"
	case protoopcua.ByteV:
		return "Byte"
	case protoopcua.SByteV:
		return "SByte"
	default:
		return "Unknown"
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	defer metrics.ConnectedClients.WithLabelValues("opcua").Dec()

	r := bufio.NewReader(conn)
	for {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return
		}
		body := make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			return
		}

		var req readRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return
		}

		resp := s.applyAndSnapshot(req)
		payload, _ := json.Marshal(resp)

		var hdr [4]byte
		binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
		if _, err := conn.Write(hdr[:]); err != nil {
			return
		}
		if _, err := conn.Write(payload); err != nil {
			return
		}
	}
}

func (s *Server) applyAndSnapshot(req readRequest) readResponse {
	for key, raw := range req.Writes {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		s.store.Write(key, v)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]nodeView, len(s.snapshot))
	for k, v := range s.snapshot {
		out[k] = v
	}
	return readResponse{OK: true, Nodes: out}
}

// EnsureMapped lazily creates an OPC-UA node for key if it has no OPC-UA
// mapping yet (other protocols' mappings are not consulted), as a Double node —
// callers that know the intended wire type should map explicitly instead.
func (s *Server) EnsureMapped(key string, id uuid.UUID) {
	if _, ok := s.mapping.Get(key); ok {
		return
	}
	if _, err := s.mapping.EnsureNode(key, protoopcua.Double); err != nil {
		log.Warnf("opcua: auto-create node for %s: %v", key, err)
	}
}
