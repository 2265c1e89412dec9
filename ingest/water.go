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
	"encoding/json"
	"strings"

	"github.com/ausocean/ranger/fault"
	"github.com/ausocean/ranger/model"
)

// WaterSubmission is an unvalidated water quality reading.
type WaterSubmission struct {
	Site            string `json:"site"`
	PH              Float  `json:"ph"`
	Temperature     Float  `json:"temperature_c"`
	Turbidity       Float  `json:"turbidity_ntu"`
	DissolvedOxygen Float  `json:"dissolved_oxygen_mg_l"`
	Latitude        Float  `json:"latitude"`
	Longitude       Float  `json:"longitude"`
	Timestamp       string `json:"timestamp"`
	User            string `json:"user"`
	Notes           string `json:"notes"`
}

// DecodeWaterJSON decodes a JSON water reading.
func DecodeWaterJSON(body []byte) (*WaterSubmission, error) {
	var w WaterSubmission
	err := json.Unmarshal(body, &w)
	if err != nil {
		return nil, fault.Wrap(err, fault.BadRequest, "invalid JSON body")
	}
	w.Site = strings.TrimSpace(w.Site)
	w.User = strings.TrimSpace(w.User)
	w.Notes = strings.TrimSpace(w.Notes)
	w.Timestamp = strings.TrimSpace(w.Timestamp)
	return &w, nil
}

// CreateWaterReading validates and stores a water reading.
func (s *Service) CreateWaterReading(ctx context.Context, sub *WaterSubmission) (*model.WaterReading, error) {
	if s.store == nil {
		return nil, fault.New(fault.ServiceUnavailable, "database not available")
	}
	err := s.checkUser(ctx, sub.User)
	if err != nil {
		return nil, err
	}

	if sub.Site == "" {
		return nil, fault.New(fault.BadRequest, "site is required")
	}
	if ph := sub.PH.V; ph != nil && (*ph < 0 || *ph > 14) {
		return nil, fault.New(fault.BadRequest, "ph must be between 0 and 14")
	}
	for name, v := range map[string]*float64{"turbidity_ntu": sub.Turbidity.V, "dissolved_oxygen_mg_l": sub.DissolvedOxygen.V} {
		if v != nil && *v < 0 {
			return nil, fault.New(fault.BadRequest, "%s must not be negative", name)
		}
	}
	err = validateLocation(sub.Latitude.V, sub.Longitude.V)
	if err != nil {
		return nil, err
	}
	ts, err := s.parseTimestamp(sub.Timestamp)
	if err != nil {
		return nil, err
	}

	w := &model.WaterReading{
		Site:            sub.Site,
		PH:              sub.PH.V,
		Temperature:     sub.Temperature.V,
		Turbidity:       sub.Turbidity.V,
		DissolvedOxygen: sub.DissolvedOxygen.V,
		Latitude:        sub.Latitude.V,
		Longitude:       sub.Longitude.V,
		Timestamp:       ts,
		User:            sub.User,
		Notes:           sub.Notes,
	}
	err = model.PutWaterReading(ctx, s.store, w)
	if err != nil {
		return nil, fault.Wrap(err, fault.UpstreamFailure, "could not save water reading")
	}
	s.log.Info("stored water reading", "id", w.ID, "site", w.Site)
	return w, nil
}

// ListWaterReadings returns water readings, newest first. A positive
// limit caps the number returned.
func (s *Service) ListWaterReadings(ctx context.Context, limit int) ([]model.WaterReading, error) {
	if s.store == nil {
		return nil, fault.New(fault.ServiceUnavailable, "database not available")
	}
	readings, err := model.GetWaterReadings(ctx, s.store, limit)
	if err != nil {
		return nil, fault.Wrap(err, fault.UpstreamFailure, "could not fetch water readings")
	}
	return readings, nil
}
