/*
DESCRIPTION
  Observation type and functions.

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

// Package model defines the entities stored by ranger and the
// functions that read and write them.
package model

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/ausocean/ranger/datastore"
)

// typeObservation is the name of the observation collection.
const typeObservation = "observations"

// Observation categories.
const (
	CategorySighting    = "Sighting"
	CategoryIncident    = "Incident"
	CategoryMaintenance = "Maintenance"
)

// PoachingTypes are the valid values of Observation.PoachingType.
var PoachingTypes = []string{"Carcass", "Snare", "Poacher", "Fishing net/equipment"}

// poachingKeywords classify an incident type as poaching when any is
// a case-insensitive substring of it. The same set is used for
// validation and for notification.
var poachingKeywords = []string{"poach", "illegal hunting", "snare", "trap"}

// Observation is a single field record: a sighting, an incident or a
// maintenance job. Only the fields relevant to the category are set.
type Observation struct {
	ID              string    `json:"id" firestore:"-"`
	Category        string    `json:"category" firestore:"category"`
	Animal          string    `json:"animal,omitempty" firestore:"animal,omitempty"`
	IncidentType    string    `json:"incident_type,omitempty" firestore:"incident_type,omitempty"`
	PoachingType    string    `json:"poaching_type,omitempty" firestore:"poaching_type,omitempty"`
	MaintenanceType string    `json:"maintenance_type,omitempty" firestore:"maintenance_type,omitempty"`
	Notes           string    `json:"notes,omitempty" firestore:"notes,omitempty"`
	Latitude        *float64  `json:"latitude,omitempty" firestore:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty" firestore:"longitude,omitempty"`
	Timestamp       time.Time `json:"timestamp" firestore:"timestamp"`
	User            string    `json:"user,omitempty" firestore:"user,omitempty"`
	ImagePath       string    `json:"image_path,omitempty" firestore:"image_path,omitempty"`
	ImageFilename   string    `json:"image_filename,omitempty" firestore:"image_filename,omitempty"`
}

// Copy copies an observation to dst, or returns a copy of the
// observation when dst is nil.
func (o *Observation) Copy(dst datastore.Entity) (datastore.Entity, error) {
	var c *Observation
	if dst == nil {
		c = new(Observation)
	} else {
		var ok bool
		c, ok = dst.(*Observation)
		if !ok {
			return nil, datastore.ErrWrongType
		}
	}
	*c = *o
	c.Latitude = copyFloat(o.Latitude)
	c.Longitude = copyFloat(o.Longitude)
	return c, nil
}

// Located returns true if the observation carries both coordinates.
func (o *Observation) Located() bool {
	return o.Latitude != nil && o.Longitude != nil
}

// IsPoachingType returns true if the incident type names a form of
// poaching.
func IsPoachingType(incidentType string) bool {
	s := strings.ToLower(incidentType)
	for _, k := range poachingKeywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// ValidPoachingType returns true if s is one of PoachingTypes.
func ValidPoachingType(s string) bool {
	return slices.Contains(PoachingTypes, s)
}

// ValidCategory returns true if s is a known category.
func ValidCategory(s string) bool {
	switch s {
	case CategorySighting, CategoryIncident, CategoryMaintenance:
		return true
	default:
		return false
	}
}

// IsPoachingIncident returns true if the observation is an incident
// whose type is a poaching type.
func IsPoachingIncident(o *Observation) bool {
	return o != nil && o.Category == CategoryIncident && IsPoachingType(o.IncidentType)
}

// PutObservation stores a new observation, setting its ID.
func PutObservation(ctx context.Context, store datastore.Store, o *Observation) error {
	key, err := store.Put(ctx, store.IncompleteKey(typeObservation), o)
	if err != nil {
		return err
	}
	o.ID = key.Name
	return nil
}

// GetObservation returns the observation with the given ID.
func GetObservation(ctx context.Context, store datastore.Store, id string) (*Observation, error) {
	if !validName(id) {
		return nil, datastore.ErrNoSuchEntity
	}
	var o Observation
	err := store.Get(ctx, store.NameKey(typeObservation, id), &o)
	if err != nil {
		return nil, err
	}
	o.ID = id
	return &o, nil
}

// GetObservations returns all observations, newest first.
func GetObservations(ctx context.Context, store datastore.Store) ([]Observation, error) {
	q := store.NewQuery(typeObservation)
	q.Order("-timestamp")
	var obs []Observation
	keys, err := store.GetAll(ctx, q, &obs)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		obs[i].ID = k.Name
	}
	return obs, nil
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// validName returns true if s can be used as a key name.
func validName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.Contains(s, "/")
}
