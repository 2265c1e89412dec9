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

package upload

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Format is a payload shape.
type Format string

const (
	FormatJSON    Format = "json"
	FormatGeoJSON Format = "geojson"
)

// ParseFormat parses a payload format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatGeoJSON:
		return f, nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q, must be json or geojson", s)
	}
}

// Fields are the user-entered observation fields.
type Fields struct {
	Category        string
	Animal          string
	IncidentType    string
	PoachingType    string
	MaintenanceType string
	Notes           string
}

// Photo is an image attached to an observation.
type Photo struct {
	Filename string
	Data     []byte
}

// ContentType returns the detected MIME type of the photo.
func (p *Photo) ContentType() string {
	return http.DetectContentType(p.Data)
}

// DataURL returns the photo as a base64 data: URL.
func (p *Photo) DataURL() string {
	return "data:" + p.ContentType() + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// Observation is the flat JSON observation record.
type Observation struct {
	ID              string   `json:"id"`
	Category        string   `json:"category"`
	Animal          string   `json:"animal,omitempty"`
	IncidentType    string   `json:"incident_type,omitempty"`
	PoachingType    string   `json:"poaching_type,omitempty"`
	MaintenanceType string   `json:"maintenance_type,omitempty"`
	Notes           string   `json:"notes,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	Accuracy        *float64 `json:"accuracy,omitempty"`
	Altitude        *float64 `json:"altitude,omitempty"`
	Timestamp       string   `json:"timestamp"`
	User            string   `json:"user,omitempty"`
	Image           string   `json:"image,omitempty"`
	ImageFilename   string   `json:"image_filename,omitempty"`
}

// formFields returns the observation as multipart form fields.
func (o *Observation) formFields() map[string]string {
	m := map[string]string{
		"id":               o.ID,
		"category":         o.Category,
		"animal":           o.Animal,
		"incident_type":    o.IncidentType,
		"poaching_type":    o.PoachingType,
		"maintenance_type": o.MaintenanceType,
		"notes":            o.Notes,
		"timestamp":        o.Timestamp,
		"user":             o.User,
	}
	if o.Latitude != nil && o.Longitude != nil {
		m["latitude"] = fmt.Sprint(*o.Latitude)
		m["longitude"] = fmt.Sprint(*o.Longitude)
	}
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	return m
}

// Payload is a built observation ready to send.
type Payload struct {
	ID          string
	Format      Format
	Observation *Observation     // Set for FormatJSON.
	Feature     *geojson.Feature // Set for FormatGeoJSON.
	Photo       *Photo           // Optional.
}

// Filename returns the file name used when the payload is stored as
// a file.
func (p *Payload) Filename() string {
	return p.ID + "." + string(p.Format)
}

// Marshal returns the JSON encoding of the payload. The photo, if
// any, is embedded as a data URL.
func (p *Payload) Marshal() ([]byte, error) {
	switch p.Format {
	case FormatGeoJSON:
		f := *p.Feature
		if p.Photo != nil {
			props := make(map[string]interface{}, len(f.Properties)+2)
			for k, v := range f.Properties {
				props[k] = v
			}
			props["image"] = p.Photo.DataURL()
			props["image_filename"] = p.Photo.Filename
			f.Properties = props
		}
		return json.Marshal(&f)
	default:
		o := *p.Observation
		if p.Photo != nil {
			o.Image = p.Photo.DataURL()
			o.ImageFilename = p.Photo.Filename
		}
		return json.Marshal(&o)
	}
}

// Builder assembles payloads.
type Builder struct {
	user  string
	newID func() string
	now   func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithIDFunc sets the payload ID generator.
func WithIDFunc(fn func() string) BuilderOption {
	return func(b *Builder) { b.newID = fn }
}

// WithClock sets the time source used when a fix carries no time.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

// NewBuilder returns a builder stamping payloads with the given user.
func NewBuilder(user string, opts ...BuilderOption) *Builder {
	b := &Builder{user: user, newID: uuid.NewString, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns a payload of the given format. A JSON payload may be
// built without a fix; a GeoJSON payload requires one.
func (b *Builder) Build(format Format, fields Fields, fix *Fix, photo *Photo) (*Payload, error) {
	if fields.Category == "" {
		return nil, fmt.Errorf("category is required")
	}
	if fix != nil || format == FormatGeoJSON {
		err := fix.Validate()
		if err != nil {
			return nil, err
		}
	}

	p := &Payload{ID: b.newID(), Format: format, Photo: photo}
	ts := b.now()
	if fix != nil && !fix.Time.IsZero() {
		ts = fix.Time
	}
	timestamp := ts.UTC().Format(time.RFC3339)

	switch format {
	case FormatJSON:
		p.Observation = b.observation(p.ID, timestamp, fields, fix)
	case FormatGeoJSON:
		p.Feature = b.feature(p.ID, timestamp, fields, fix)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	return p, nil
}

func (b *Builder) observation(id, timestamp string, fields Fields, fix *Fix) *Observation {
	o := &Observation{
		ID:              id,
		Category:        fields.Category,
		Animal:          fields.Animal,
		IncidentType:    fields.IncidentType,
		PoachingType:    fields.PoachingType,
		MaintenanceType: fields.MaintenanceType,
		Notes:           fields.Notes,
		Timestamp:       timestamp,
		User:            b.user,
	}
	if fix != nil {
		lat, lon := fix.Latitude, fix.Longitude
		o.Latitude, o.Longitude = &lat, &lon
		o.Accuracy, o.Altitude = fix.Accuracy, fix.Altitude
	}
	return o
}

func (b *Builder) feature(id, timestamp string, fields Fields, fix *Fix) *geojson.Feature {
	props := map[string]interface{}{
		"id":        id,
		"timestamp": timestamp,
		"category":  fields.Category,
	}
	optional := map[string]string{
		"animal":           fields.Animal,
		"incident_type":    fields.IncidentType,
		"poaching_type":    fields.PoachingType,
		"maintenance_type": fields.MaintenanceType,
		"notes":            fields.Notes,
		"user":             b.user,
	}
	for k, v := range optional {
		if v != "" {
			props[k] = v
		}
	}
	for k, v := range map[string]*float64{"accuracy": fix.Accuracy, "altitude": fix.Altitude, "speed": fix.Speed, "heading": fix.Heading} {
		if v != nil {
			props[k] = *v
		}
	}
	return &geojson.Feature{
		ID:         id,
		Geometry:   geom.NewPointFlat(geom.XY, []float64{fix.Longitude, fix.Latitude}),
		Properties: props,
	}
}
