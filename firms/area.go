/*
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

package firms

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Area is a bounding box in decimal degrees.
type Area struct {
	West, South, East, North float64
}

// ParseArea parses "west,south,east,north".
func ParseArea(s string) (Area, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Area{}, fmt.Errorf("invalid area %q: want west,south,east,north", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Area{}, fmt.Errorf("invalid area %q: %w", s, err)
		}
		v[i] = f
	}
	a := Area{West: v[0], South: v[1], East: v[2], North: v[3]}
	if a.West < -180 || a.East > 180 || a.South < -90 || a.North > 90 || a.West >= a.East || a.South >= a.North {
		return Area{}, fmt.Errorf("invalid area %q: out of range", s)
	}
	return a, nil
}

// String returns "west,south,east,north", the form used in FIRMS URLs.
func (a Area) String() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return f(a.West) + "," + f(a.South) + "," + f(a.East) + "," + f(a.North)
}

// Bounds returns the area as XY bounds.
func (a Area) Bounds() *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(a.West, a.South, a.East, a.North)
}

// Center returns the latitude and longitude of the middle of the
// area.
func (a Area) Center() (lat, lon float64) {
	return (a.South + a.North) / 2, (a.West + a.East) / 2
}

// Contains returns true if the point lies within the area, edges
// included.
func (a Area) Contains(lat, lon float64) bool {
	return a.Bounds().OverlapsPoint(geom.XY, geom.Coord{lon, lat})
}

// Within returns the fires inside area.
func Within(fires []Fire, area Area) []Fire {
	var in []Fire
	b := area.Bounds()
	for _, f := range fires {
		if b.OverlapsPoint(geom.XY, geom.Coord{f.Longitude, f.Latitude}) {
			in = append(in, f)
		}
	}
	return in
}

// FeatureCollection returns fires as GeoJSON point features.
func FeatureCollection(fires []Fire) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(fires))}
	for _, f := range fires {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: geom.NewPointFlat(geom.XY, []float64{f.Longitude, f.Latitude}),
			Properties: map[string]interface{}{
				"sensor":     string(f.Sensor),
				"brightness": f.Brightness,
				"acq_date":   f.AcqDate,
				"acq_time":   f.AcqTime,
				"confidence": f.Confidence,
				"frp":        f.FRP,
				"satellite":  f.Satellite,
				"daynight":   f.DayNight,
			},
		})
	}
	return fc
}
