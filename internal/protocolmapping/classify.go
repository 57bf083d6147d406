// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package protocolmapping

import "strings"

// Classify guesses a semantic hint for a tag from its key and units, the
// same substring heuristic the gateway's bulk-mapping helpers use to pick
// a protocol-native encoding without the caller having to spell one out.
// It never looks at the Go runtime value, only the key name and units.
type Hint int

const (
	HintGeneric Hint = iota
	HintTemperature
	HintPressure
	HintFlow
	HintVibration
	HintPower
	HintPercentage
	HintStatusCode
)

// Classify inspects key and units (case-insensitively) and returns the
// best-matching Hint, or HintGeneric if nothing matches.
func Classify(key, units string) Hint {
	k := strings.ToLower(key)
	u := strings.ToLower(units)

	switch {
	case strings.Contains(k, "temp") || strings.Contains(u, "°c") || strings.Contains(u, "°f"):
		return HintTemperature
	case strings.Contains(k, "pressure") || strings.Contains(u, "hpa") || strings.Contains(u, "bar") || strings.Contains(u, "psi"):
		return HintPressure
	case strings.Contains(k, "flow") || strings.Contains(u, "l/min") || strings.Contains(u, "m3/h"):
		return HintFlow
	case strings.Contains(k, "vibrat") || strings.Contains(u, "mm/s"):
		return HintVibration
	case strings.Contains(k, "power") || strings.Contains(u, "kw"):
		return HintPower
	case strings.Contains(k, "position") || strings.Contains(u, "%"):
		return HintPercentage
	case strings.Contains(k, "status") || strings.Contains(k, "code") || strings.Contains(k, "alarm"):
		return HintStatusCode
	default:
		return HintGeneric
	}
}

// Strategy selects how AutoMap spaces out consecutive addresses.
type Strategy int

const (
	// StrategyByDataType groups tags into their type's sub-range (the
	// default — matches how a PLC engineer would lay out a register map).
	StrategyByDataType Strategy = iota
	// StrategySequential is accepted by the Modbus and IEC-104 AutoMap
	// helpers, which place each tag in its type's sub-range exactly as
	// StrategyByDataType does; they take no start address and do not pack
	// tags back-to-back across type sub-ranges.
	StrategySequential
)
