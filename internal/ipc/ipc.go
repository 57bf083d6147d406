// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ipc exposes the gateway's data store over a local Unix domain
// socket, framed as newline-delimited JSON, for sibling processes on the
// same host (simulators, local dashboards, test harnesses) that need to
// write tags without going through any of the four field protocols.
package ipc

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plantscope/dataservice/internal/datastore"
	"github.com/plantscope/dataservice/internal/metrics"
	"github.com/plantscope/dataservice/pkg/log"
)

const socketMode = 0o600

// maxConcurrentConns bounds how many client handler goroutines may run at
// once; additional connections queue at the listener backlog.
const maxConcurrentConns = 5

// Request is one NDJSON line read from a client connection.
type Request struct {
	Action  string          `json:"action"`
	Key     string          `json:"key,omitempty"`
	ID      string          `json:"id,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
	Updates []BulkWriteItem `json:"updates,omitempty"`
}

// BulkWriteItem is one entry of a bulk_write_by_id request.
type BulkWriteItem struct {
	ID    string          `json:"id"`
	Value json.RawMessage `json:"value"`
}

// Response is one NDJSON line written back to a client connection.
type Response struct {
	OK      bool         `json:"ok"`
	Error   string       `json:"error,omitempty"`
	Action  string       `json:"action,omitempty"`
	Key     string       `json:"key,omitempty"`
	ID      string       `json:"id,omitempty"`
	Results []BulkResult `json:"results,omitempty"`
}

// BulkResult is one entry of a bulk_write_by_id response, in request order.
type BulkResult struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Key   string `json:"key,omitempty"`
	Error string `json:"error,omitempty"`
}

// Server accepts local connections and applies writes against a
// datastore.DataStore.
type Server struct {
	socketPath string
	store      *datastore.DataStore
	listener   *net.UnixListener
	sem        chan struct{}
	wg         sync.WaitGroup
}

// New creates a Server for socketPath. It does not touch the filesystem;
// Listen unlinks any stale socket file left behind by a previous run.
func New(socketPath string, store *datastore.DataStore) *Server {
	return &Server{
		socketPath: socketPath,
		store:      store,
		sem:        make(chan struct{}, maxConcurrentConns),
	}
}

// Listen binds the Unix socket and sets its permissions to 0600 (owner
// read/write only — the socket carries no authentication of its own).
func (s *Server) Listen() error {
	_ = os.Remove(s.socketPath)

	addr, err := net.ResolveUnixAddr("unix", s.socketPath)
	if err != nil {
		return err
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.socketPath, socketMode); err != nil {
		ln.Close()
		return err
	}
	s.listener = ln
	return nil
}

// Run accepts connections until stop is closed, polling with a 1-second
// accept deadline so shutdown latency stays bounded even with no active
// clients.
func (s *Server) Run(stop <-chan struct{}) {
	defer s.wg.Wait()

	for {
		select {
		case <-stop:
			return
		default:
		}

		s.listener.SetDeadline(time.Now().Add(1 * time.Second))
		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-stop:
				return
			default:
				log.Warnf("ipc: accept error: %v", err)
				continue
			}
		}

		select {
		case s.sem <- struct{}{}:
		case <-stop:
			conn.Close()
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			s.handle(conn)
		}()
	}
}

// Close shuts down the listener and removes the socket file.
func (s *Server) Close() {
	if s.listener != nil {
		s.listener.Close()
	}
	_ = os.Remove(s.socketPath)
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	dec := json.NewDecoder(bufio.NewReader(conn))
	enc := json.NewEncoder(conn)

	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			return
		}
		resp := s.dispatch(req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	switch req.Action {
	case "write":
		return s.doWrite(req)
	case "write_by_id":
		return s.doWriteByID(req)
	case "bulk_write_by_id":
		return s.doBulkWriteByID(req)
	default:
		metrics.IPCRequests.WithLabelValues(req.Action, "rejected").Inc()
		return Response{OK: false, Action: req.Action, Error: "unknown action"}
	}
}

func (s *Server) doWrite(req Request) Response {
	var raw any
	if err := json.Unmarshal(req.Value, &raw); err != nil {
		metrics.IPCRequests.WithLabelValues("write", "error").Inc()
		return Response{OK: false, Action: "write", Key: req.Key, Error: err.Error()}
	}
	s.store.Write(req.Key, raw)
	metrics.IPCRequests.WithLabelValues("write", "ok").Inc()
	return Response{OK: true, Action: "write", Key: req.Key}
}

func (s *Server) doWriteByID(req Request) Response {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		metrics.IPCRequests.WithLabelValues("write_by_id", "error").Inc()
		return Response{OK: false, Action: "write_by_id", ID: req.ID, Error: "id not found"}
	}
	key, ok := s.store.KeyForID(id)
	if !ok {
		metrics.IPCRequests.WithLabelValues("write_by_id", "unknown").Inc()
		return Response{OK: false, Action: "write_by_id", ID: req.ID, Error: "id not found"}
	}
	var raw any
	if err := json.Unmarshal(req.Value, &raw); err != nil {
		metrics.IPCRequests.WithLabelValues("write_by_id", "error").Inc()
		return Response{OK: false, Action: "write_by_id", ID: req.ID, Error: err.Error()}
	}
	s.store.Write(key, raw)
	metrics.IPCRequests.WithLabelValues("write_by_id", "ok").Inc()
	return Response{OK: true, Action: "write_by_id", ID: req.ID, Key: key}
}

func (s *Server) doBulkWriteByID(req Request) Response {
	results := make([]BulkResult, 0, len(req.Updates))
	for _, item := range req.Updates {
		id, err := uuid.Parse(item.ID)
		if err != nil {
			metrics.IPCRequests.WithLabelValues("bulk_write_by_id", "error").Inc()
			results = append(results, BulkResult{ID: item.ID, OK: false, Error: "id not found"})
			continue
		}
		key, ok := s.store.KeyForID(id)
		if !ok {
			metrics.IPCRequests.WithLabelValues("bulk_write_by_id", "unknown").Inc()
			results = append(results, BulkResult{ID: item.ID, OK: false, Error: "id not found"})
			continue
		}
		var raw any
		if err := json.Unmarshal(item.Value, &raw); err != nil {
			metrics.IPCRequests.WithLabelValues("bulk_write_by_id", "error").Inc()
			results = append(results, BulkResult{ID: item.ID, OK: false, Error: err.Error()})
			continue
		}
		s.store.Write(key, raw)
		metrics.IPCRequests.WithLabelValues("bulk_write_by_id", "ok").Inc()
		results = append(results, BulkResult{ID: item.ID, OK: true, Key: key})
	}
	return Response{OK: true, Action: "bulk_write_by_id", Results: results}
}
