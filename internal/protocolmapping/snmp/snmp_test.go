// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package snmp

import "testing"

func TestMapAutoAllocatesSuffix(t *testing.T) {
	r := New()
	e, err := r.Map("tank.level", TypeGauge32, 0)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if e.Suffix < 1 || e.Suffix > 9999 {
		t.Fatalf("suffix %d out of range", e.Suffix)
	}
}

func TestMapRejectsDuplicateSuffix(t *testing.T) {
	r := New()
	if _, err := r.Map("a", TypeGauge32, 7); err != nil {
		t.Fatalf("first Map: %v", err)
	}
	if _, err := r.Map("b", TypeCounter32, 7); err == nil {
		t.Fatal("expected error reserving an already-taken suffix")
	}
}

func TestOIDIsUnderEnterpriseArc(t *testing.T) {
	r := New()
	e, err := r.Map("pump.runtime", TypeCounter32, 3)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	want := EnterpriseOID + ".3.0"
	if e.OID() != want {
		t.Fatalf("OID() = %q, want %q", e.OID(), want)
	}
}

func TestFindByOIDRoundTrips(t *testing.T) {
	r := New()
	e, err := r.Map("valve.open", TypeInteger, 0)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	key, found, ok := r.FindByOID(e.OID())
	if !ok || key != "valve.open" || found.Type != TypeInteger {
		t.Fatalf("FindByOID(%s) = %q, %+v, %v", e.OID(), key, found, ok)
	}
}
