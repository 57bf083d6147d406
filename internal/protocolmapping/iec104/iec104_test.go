// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iec104

import "testing"

func TestMapAutoAllocatesWithinTypeRange(t *testing.T) {
	r := New()
	e, err := r.Map("boiler.temp", MMeNC1, 0)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if e.IOA < 1000 || e.IOA > 1999 {
		t.Fatalf("IOA %d outside M_ME_NC_1 range", e.IOA)
	}
}

func TestMapRejectsDuplicateIOA(t *testing.T) {
	r := New()
	if _, err := r.Map("a", MSpNA1, 3000); err != nil {
		t.Fatalf("first Map: %v", err)
	}
	if _, err := r.Map("b", MSpNA1, 3000); err == nil {
		t.Fatal("expected error reserving an already-taken IOA")
	}
}

func TestFindByIOARoundTrips(t *testing.T) {
	r := New()
	e, err := r.Map("pump.running", MSpNA1, 0)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	key, found, ok := r.FindByIOA(e.IOA)
	if !ok || key != "pump.running" || found.Type != MSpNA1 {
		t.Fatalf("FindByIOA(%d) = %q, %+v, %v", e.IOA, key, found, ok)
	}
}

func TestTypeIDMatchesWireConstants(t *testing.T) {
	cases := map[ASDUType]byte{
		MSpNA1: 1,
		MMeNA1: 9,
		MMeNB1: 11,
		MMeNC1: 13,
		MMeNF1: 36,
	}
	for typ, want := range cases {
		if got := typ.TypeID(); got != want {
			t.Errorf("%s.TypeID() = %d, want %d", typ, got, want)
		}
	}
}
