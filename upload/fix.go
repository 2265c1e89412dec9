/*
DESCRIPTION
  Field client payloads and upload transports.

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

// Package upload builds observation payloads from a position fix and
// user-entered fields, and sends them either to the ranger backend or
// to a GitHub repository through the Contents API.
package upload

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNoFix is returned when an operation requires a position fix and
// none is available.
var ErrNoFix = errors.New("no position fix")

// Fix is a GPS position fix. Optional quantities are nil when the
// receiver did not report them.
type Fix struct {
	Latitude  float64   // Decimal degrees.
	Longitude float64   // Decimal degrees.
	Accuracy  *float64  // Metres.
	Altitude  *float64  // Metres.
	Speed     *float64  // Metres per second.
	Heading   *float64  // Degrees clockwise from true north.
	Time      time.Time // Time of the fix, if known.
}

// Validate returns ErrNoFix for a nil fix, or an error describing the
// first out-of-range quantity.
func (f *Fix) Validate() error {
	if f == nil || math.IsNaN(f.Latitude) || math.IsNaN(f.Longitude) {
		return ErrNoFix
	}
	if f.Latitude < -90 || f.Latitude > 90 {
		return fmt.Errorf("latitude %g out of range", f.Latitude)
	}
	if f.Longitude < -180 || f.Longitude > 180 {
		return fmt.Errorf("longitude %g out of range", f.Longitude)
	}
	if f.Accuracy != nil && *f.Accuracy < 0 {
		return fmt.Errorf("accuracy %g is negative", *f.Accuracy)
	}
	if f.Speed != nil && *f.Speed < 0 {
		return fmt.Errorf("speed %g is negative", *f.Speed)
	}
	if f.Heading != nil && (*f.Heading < 0 || *f.Heading >= 360) {
		return fmt.Errorf("heading %g out of range", *f.Heading)
	}
	return nil
}
