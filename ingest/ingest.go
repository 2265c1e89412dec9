/*
DESCRIPTION
  Validation and persistence of field observations.

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

// Package ingest validates, normalizes and stores field observations,
// and serves them back for map display.
//
// Create runs a fixed sequence of gates: store availability, user
// revocation, shape validation, normalization, best-effort image
// upload, persistence and, for poaching incidents, notification. The
// first failing gate ends the request before anything is written.
package ingest

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/ranger/blob"
	"github.com/ausocean/ranger/datastore"
	"github.com/ausocean/ranger/fault"
	"github.com/ausocean/ranger/model"
	"github.com/ausocean/ranger/notify"
)

// Notifier is notified of poaching incidents.
type Notifier interface {
	NotifyIncident(ctx context.Context, obs *model.Observation) notify.Summary
}

// Service handles observation submissions.
type Service struct {
	store      datastore.Store // Nil when the store could not be set up.
	blobs      blob.Store
	notifier   Notifier
	log        logging.Logger
	failClosed bool
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithBlobStore sets the store for observation images. Without one,
// images are discarded.
func WithBlobStore(b blob.Store) Option {
	return func(s *Service) { s.blobs = b }
}

// WithNotifier sets the poaching incident notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithFailClosed rejects submissions when a user's status cannot be
// looked up. By default such submissions are accepted.
func WithFailClosed() Option {
	return func(s *Service) { s.failClosed = true }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a new Service. store may be nil, in which case
// every operation fails with fault.ServiceUnavailable.
func NewService(store datastore.Store, log logging.Logger, opts ...Option) *Service {
	s := &Service{store: store, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and stores a submission, returning the stored
// observation. Errors are *fault.Error values.
func (s *Service) Create(ctx context.Context, sub *Submission) (*model.Observation, error) {
	if s.store == nil {
		return nil, fault.New(fault.ServiceUnavailable, "database not available")
	}

	err := s.checkUser(ctx, sub.User)
	if err != nil {
		return nil, err
	}

	err = validate(sub)
	if err != nil {
		return nil, err
	}

	obs, err := s.normalize(sub)
	if err != nil {
		return nil, err
	}

	s.attachImage(ctx, sub, obs)

	err = model.PutObservation(ctx, s.store, obs)
	if err != nil {
		return nil, fault.Wrap(err, fault.UpstreamFailure, "could not save observation")
	}
	s.log.Info("stored observation", "id", obs.ID, "category", obs.Category)

	if model.IsPoachingIncident(obs) && s.notifier != nil {
		sum := s.notifier.NotifyIncident(ctx, obs)
		if sum.Success {
			s.log.Info("poaching incident notification sent", "id", obs.ID, "recipients", len(sum.Results))
		} else {
			s.log.Warning("poaching incident notification failed", "id", obs.ID, "results", sum.Results, "error", sum.Error)
		}
	}

	return obs, nil
}

// checkUser rejects revoked users. Unknown users are allowed.
func (s *Service) checkUser(ctx context.Context, user string) error {
	if user == "" {
		return nil
	}
	u, err := model.FindUser(ctx, s.store, user)
	switch {
	case errors.Is(err, datastore.ErrNoSuchEntity):
		return nil
	case err != nil:
		s.log.Warning("could not look up user status", "user", user, "error", err)
		if s.failClosed {
			return fault.Wrap(err, fault.ServiceUnavailable, "could not verify user status")
		}
		return nil
	case u.Revoked():
		s.log.Info("rejected submission from revoked user", "user", user, "id", u.ID)
		return fault.New(fault.Forbidden, "user access has been revoked")
	default:
		return nil
	}
}

// validate checks the fields required by the submission's category.
func validate(sub *Submission) error {
	switch sub.Category {
	case "":
		return fault.New(fault.BadRequest, "category is required")
	case model.CategorySighting:
		if sub.Animal == "" {
			return fault.New(fault.BadRequest, "animal is required for sightings")
		}
	case model.CategoryIncident:
		if sub.IncidentType == "" {
			return fault.New(fault.BadRequest, "incident_type is required for incidents")
		}
		if model.IsPoachingType(sub.IncidentType) {
			if sub.PoachingType == "" {
				return fault.New(fault.BadRequest, "poaching_type is required for poaching incidents")
			}
			if !model.ValidPoachingType(sub.PoachingType) {
				return fault.New(fault.BadRequest, "invalid poaching_type %q, must be one of: %s", sub.PoachingType, strings.Join(model.PoachingTypes, ", "))
			}
		}
	case model.CategoryMaintenance:
		if sub.MaintenanceType == "" {
			return fault.New(fault.BadRequest, "maintenance_type is required for maintenance")
		}
	default:
		return fault.New(fault.BadRequest, "invalid category %q, must be one of: Sighting, Incident, Maintenance", sub.Category)
	}
	return validateLocation(sub.Latitude, sub.Longitude)
}

func validateLocation(lat, lon *float64) error {
	if (lat == nil) != (lon == nil) {
		return fault.New(fault.BadRequest, "latitude and longitude must be supplied together")
	}
	if lat != nil && (*lat < -90 || *lat > 90) {
		return fault.New(fault.BadRequest, "latitude must be between -90 and 90")
	}
	if lon != nil && (*lon < -180 || *lon > 180) {
		return fault.New(fault.BadRequest, "longitude must be between -180 and 180")
	}
	return nil
}

// parseTimestamp parses an RFC 3339 timestamp, defaulting to now.
func (s *Service) parseTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return s.now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, fault.Wrap(err, fault.BadRequest, "invalid timestamp %q, must be RFC 3339", ts)
	}
	return t.UTC(), nil
}

// normalize builds the stored observation, copying only the fields
// relevant to the category.
func (s *Service) normalize(sub *Submission) (*model.Observation, error) {
	ts, err := s.parseTimestamp(sub.Timestamp)
	if err != nil {
		return nil, err
	}
	obs := &model.Observation{
		Category:  sub.Category,
		Notes:     sub.Notes,
		Latitude:  sub.Latitude,
		Longitude: sub.Longitude,
		Timestamp: ts,
		User:      sub.User,
	}
	switch sub.Category {
	case model.CategorySighting:
		obs.Animal = sub.Animal
	case model.CategoryIncident:
		obs.IncidentType = sub.IncidentType
		if model.ValidPoachingType(sub.PoachingType) {
			obs.PoachingType = sub.PoachingType
		}
	case model.CategoryMaintenance:
		obs.MaintenanceType = sub.MaintenanceType
	}
	return obs, nil
}

// attachImage uploads the submission's image, if any, and records its
// path on obs. Failures are logged and the image dropped.
func (s *Service) attachImage(ctx context.Context, sub *Submission, obs *model.Observation) {
	data, mime := sub.Image, sub.ImageType
	if len(data) == 0 && sub.ImageBase64 != "" {
		var err error
		data, mime, err = decodeImage(sub.ImageBase64)
		if err != nil {
			s.log.Warning("discarding undecodable image", "error", err)
			return
		}
	}
	if len(data) == 0 {
		return
	}
	if s.blobs == nil {
		s.log.Warning("discarding image, no blob store configured")
		return
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	filename := sub.ImageFilename
	if filename == "" {
		filename = "image"
	}

	path, err := s.blobs.Put(ctx, blob.ObjectName(s.now(), filename), mime, data)
	if err != nil {
		s.log.Warning("image upload failed, storing observation without image", "error", err)
		return
	}
	obs.ImagePath = path
	obs.ImageFilename = filename
}
