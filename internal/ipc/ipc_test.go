// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ipc

import (
	"bufio"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantscope/dataservice/internal/datastore"
)

func startTestServer(t *testing.T) (*Server, *datastore.DataStore, string) {
	t.Helper()
	store := datastore.New(nil, 10)
	_, err := store.Register("tank.level", datastore.Float, datastore.RegisterOptions{})
	require.NoError(t, err)

	sockPath := filepath.Join(t.TempDir(), "dataservice.sock")
	srv := New(sockPath, store)
	require.NoError(t, srv.Listen())

	stop := make(chan struct{})
	go srv.Run(stop)
	t.Cleanup(func() {
		close(stop)
		srv.Close()
	})

	return srv, store, sockPath
}

func TestWriteByKeyOverSocket(t *testing.T) {
	_, store, sockPath := startTestServer(t)

	conn, err := net.DialTimeout("unix", sockPath, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	enc := json.NewEncoder(conn)
	dec := json.NewDecoder(bufio.NewReader(conn))

	require.NoError(t, enc.Encode(Request{Action: "write", Key: "tank.level", Value: json.RawMessage(`12.5`)}))

	var resp Response
	require.NoError(t, dec.Decode(&resp))
	assert.True(t, resp.OK)

	v := store.Read("tank.level")
	assert.Equal(t, 12.5, v.F)
}

func TestWriteByIDUnknownIDReportsNotFound(t *testing.T) {
	_, _, sockPath := startTestServer(t)

	conn, err := net.DialTimeout("unix", sockPath, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	enc := json.NewEncoder(conn)
	dec := json.NewDecoder(bufio.NewReader(conn))

	require.NoError(t, enc.Encode(Request{Action: "write_by_id", ID: uuid.NewString(), Value: json.RawMessage(`1`)}))

	var resp Response
	require.NoError(t, dec.Decode(&resp))
	assert.False(t, resp.OK)
	assert.Equal(t, "id not found", resp.Error)
}

func TestBulkWriteByIDReturnsPerEntryResults(t *testing.T) {
	_, store, sockPath := startTestServer(t)

	id, ok := store.EnsureID("tank.level")
	require.True(t, ok)

	conn, err := net.DialTimeout("unix", sockPath, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	enc := json.NewEncoder(conn)
	dec := json.NewDecoder(bufio.NewReader(conn))

	missing := uuid.New()
	req := Request{
		Action: "bulk_write_by_id",
		Updates: []BulkWriteItem{
			{ID: id.String(), Value: json.RawMessage(`42.0`)},
			{ID: missing.String(), Value: json.RawMessage(`1`)},
		},
	}
	require.NoError(t, enc.Encode(req))

	var resp Response
	require.NoError(t, dec.Decode(&resp))
	assert.True(t, resp.OK)
	require.Len(t, resp.Results, 2)

	assert.True(t, resp.Results[0].OK)
	assert.Equal(t, "tank.level", resp.Results[0].Key)

	assert.False(t, resp.Results[1].OK)
	assert.Equal(t, "id not found", resp.Results[1].Error)

	v := store.Read("tank.level")
	assert.Equal(t, 42.0, v.F)
}

func TestUnknownActionIsRejected(t *testing.T) {
	_, _, sockPath := startTestServer(t)

	conn, err := net.DialTimeout("unix", sockPath, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	enc := json.NewEncoder(conn)
	dec := json.NewDecoder(bufio.NewReader(conn))

	require.NoError(t, enc.Encode(Request{Action: "delete_everything"}))

	var resp Response
	require.NoError(t, dec.Decode(&resp))
	assert.False(t, resp.OK)
}
