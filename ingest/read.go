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

package ingest

import (
	"context"
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/ausocean/ranger/fault"
	"github.com/ausocean/ranger/model"
)

// Location is the map projection of an observation.
type Location struct {
	ID              string    `json:"id"`
	Category        string    `json:"category"`
	Animal          string    `json:"animal,omitempty"`
	IncidentType    string    `json:"incident_type,omitempty"`
	PoachingType    string    `json:"poaching_type,omitempty"`
	MaintenanceType string    `json:"maintenance_type,omitempty"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	Timestamp       time.Time `json:"timestamp"`
}

// List returns the located observations, newest first.
func (s *Service) List(ctx context.Context) ([]Location, error) {
	if s.store == nil {
		return nil, fault.New(fault.ServiceUnavailable, "database not available")
	}
	obs, err := model.GetObservations(ctx, s.store)
	if err != nil {
		return nil, fault.Wrap(err, fault.UpstreamFailure, "could not fetch observations")
	}

	locs := make([]Location, 0, len(obs))
	for _, o := range obs {
		if !o.Located() {
			continue
		}
		locs = append(locs, Location{
			ID:              o.ID,
			Category:        o.Category,
			Animal:          o.Animal,
			IncidentType:    o.IncidentType,
			PoachingType:    o.PoachingType,
			MaintenanceType: o.MaintenanceType,
			Latitude:        *o.Latitude,
			Longitude:       *o.Longitude,
			Timestamp:       o.Timestamp,
		})
	}
	return locs, nil
}

// Features returns the located observations as a GeoJSON feature
// collection, newest first.
func (s *Service) Features(ctx context.Context) (*geojson.FeatureCollection, error) {
	locs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(locs))}
	for _, l := range locs {
		props := map[string]interface{}{
			"category":  l.Category,
			"timestamp": l.Timestamp.Format(time.RFC3339),
		}
		for k, v := range map[string]string{
			"animal":           l.Animal,
			"incident_type":    l.IncidentType,
			"poaching_type":    l.PoachingType,
			"maintenance_type": l.MaintenanceType,
		} {
			if v != "" {
				props[k] = v
			}
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         l.ID,
			Geometry:   geom.NewPointFlat(geom.XY, []float64{l.Longitude, l.Latitude}),
			Properties: props,
		})
	}
	return fc, nil
}
