// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opcua

import "testing"

func TestEnsureNodeCreatesOnceAndIsIdempotent(t *testing.T) {
	r := New()
	first, err := r.EnsureNode("tank.level", Double)
	if err != nil {
		t.Fatalf("EnsureNode: %v", err)
	}
	second, err := r.EnsureNode("tank.level", Int32V)
	if err != nil {
		t.Fatalf("EnsureNode (repeat): %v", err)
	}
	if second.Type != Double || second.Identifier != first.Identifier {
		t.Fatalf("second EnsureNode changed node type/identity: first=%+v second=%+v", first, second)
	}
}

func TestEnsureNodeAllocatesWithinTypeRange(t *testing.T) {
	r := New()
	e, err := r.EnsureNode("pump.speed", Int32V)
	if err != nil {
		t.Fatalf("EnsureNode: %v", err)
	}
	if e.Identifier < 200 || e.Identifier > 299 {
		t.Fatalf("identifier %d outside Int32V range", e.Identifier)
	}
}

func TestFindByIdentifierRoundTrips(t *testing.T) {
	r := New()
	e, err := r.EnsureNode("valve.open", BooleanV)
	if err != nil {
		t.Fatalf("EnsureNode: %v", err)
	}
	key, found, ok := r.FindByIdentifier(e.Identifier)
	if !ok || key != "valve.open" || found.Type != BooleanV {
		t.Fatalf("FindByIdentifier(%d) = %q, %+v, %v", e.Identifier, key, found, ok)
	}
}

func TestNodeIDUsesConfiguredNamespace(t *testing.T) {
	r := New()
	e, err := r.EnsureNode("boiler.temp", Double)
	if err != nil {
		t.Fatalf("EnsureNode: %v", err)
	}
	if e.NodeID.Namespace() != NamespaceIndex {
		t.Fatalf("NodeID namespace = %d, want %d", e.NodeID.Namespace(), NamespaceIndex)
	}
}
