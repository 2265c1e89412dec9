/*
DESCRIPTION
  Water monitoring reading type and functions.

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

package model

import (
	"context"
	"time"

	"github.com/ausocean/ranger/datastore"
)

const typeWaterReading = "water-monitoring"

// WaterReading is a water quality measurement taken at a site.
type WaterReading struct {
	ID              string    `json:"id" firestore:"-"`
	Site            string    `json:"site" firestore:"site"`
	PH              *float64  `json:"ph,omitempty" firestore:"ph,omitempty"`
	Temperature     *float64  `json:"temperature_c,omitempty" firestore:"temperature_c,omitempty"`
	Turbidity       *float64  `json:"turbidity_ntu,omitempty" firestore:"turbidity_ntu,omitempty"`
	DissolvedOxygen *float64  `json:"dissolved_oxygen_mg_l,omitempty" firestore:"dissolved_oxygen_mg_l,omitempty"`
	Latitude        *float64  `json:"latitude,omitempty" firestore:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty" firestore:"longitude,omitempty"`
	Timestamp       time.Time `json:"timestamp" firestore:"timestamp"`
	User            string    `json:"user,omitempty" firestore:"user,omitempty"`
	Notes           string    `json:"notes,omitempty" firestore:"notes,omitempty"`
}

// Copy copies a reading to dst, or returns a copy of the reading when
// dst is nil.
func (w *WaterReading) Copy(dst datastore.Entity) (datastore.Entity, error) {
	var c *WaterReading
	if dst == nil {
		c = new(WaterReading)
	} else {
		var ok bool
		c, ok = dst.(*WaterReading)
		if !ok {
			return nil, datastore.ErrWrongType
		}
	}
	*c = *w
	for _, p := range []**float64{&c.PH, &c.Temperature, &c.Turbidity, &c.DissolvedOxygen, &c.Latitude, &c.Longitude} {
		*p = copyFloat(*p)
	}
	return c, nil
}

// PutWaterReading stores a new reading, setting its ID.
func PutWaterReading(ctx context.Context, store datastore.Store, w *WaterReading) error {
	key, err := store.Put(ctx, store.IncompleteKey(typeWaterReading), w)
	if err != nil {
		return err
	}
	w.ID = key.Name
	return nil
}

// GetWaterReadings returns readings newest first. A positive limit
// caps the number returned.
func GetWaterReadings(ctx context.Context, store datastore.Store, limit int) ([]WaterReading, error) {
	q := store.NewQuery(typeWaterReading)
	q.Order("-timestamp")
	if limit > 0 {
		q.Limit(limit)
	}
	var readings []WaterReading
	keys, err := store.GetAll(ctx, q, &readings)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		readings[i].ID = k.Name
	}
	return readings, nil
}
