// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iec104

import "errors"

var (
	errNotNumeric      = errors.New("iec104: value is not numeric")
	errNotBool         = errors.New("iec104: value is not a bool")
	errUnsupportedASDU = errors.New("iec104: unsupported ASDU type")
)
