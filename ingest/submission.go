/*
DESCRIPTION
  Decoding of observation submissions.

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
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/ausocean/ranger/fault"
)

// Submission is an unvalidated observation as received from a client.
type Submission struct {
	Category        string
	Animal          string
	IncidentType    string
	PoachingType    string
	MaintenanceType string
	Notes           string
	Latitude        *float64
	Longitude       *float64
	Timestamp       string // RFC 3339, or empty for now.
	User            string

	Image         []byte // Raw image bytes, e.g. from a multipart file.
	ImageBase64   string // Base64 image, optionally a data: URL.
	ImageFilename string
	ImageType     string // MIME type, if known.
}

// Float is a JSON number that may also be sent as a string. Empty
// strings and null decode as absent.
type Float struct {
	V *float64
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		f.V = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		err := json.Unmarshal(b, &s)
		if err != nil {
			return err
		}
		v, err := ParseFloat(s)
		if err != nil {
			return err
		}
		f.V = v
		return nil
	}
	var v float64
	err := json.Unmarshal(b, &v)
	if err != nil {
		return err
	}
	f.V = &v
	return nil
}

// ParseFloat parses an optional decimal number.
func ParseFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	return &v, nil
}

// payload is the flat JSON observation shape, which is also the shape
// of a GeoJSON Feature's properties.
type payload struct {
	Type            string `json:"type"`
	Category        string `json:"category"`
	Animal          string `json:"animal"`
	IncidentType    string `json:"incident_type"`
	PoachingType    string `json:"poaching_type"`
	MaintenanceType string `json:"maintenance_type"`
	Notes           string `json:"notes"`
	Latitude        Float  `json:"latitude"`
	Longitude       Float  `json:"longitude"`
	Timestamp       string `json:"timestamp"`
	User            string `json:"user"`
	Image           string `json:"image"`
	ImageFilename   string `json:"image_filename"`
}

func (p *payload) submission() *Submission {
	return &Submission{
		Category:        strings.TrimSpace(p.Category),
		Animal:          strings.TrimSpace(p.Animal),
		IncidentType:    strings.TrimSpace(p.IncidentType),
		PoachingType:    strings.TrimSpace(p.PoachingType),
		MaintenanceType: strings.TrimSpace(p.MaintenanceType),
		Notes:           strings.TrimSpace(p.Notes),
		Latitude:        p.Latitude.V,
		Longitude:       p.Longitude.V,
		Timestamp:       strings.TrimSpace(p.Timestamp),
		User:            strings.TrimSpace(p.User),
		ImageBase64:     p.Image,
		ImageFilename:   strings.TrimSpace(p.ImageFilename),
	}
}

// DecodeJSON decodes a flat JSON observation or a GeoJSON Feature
// whose properties carry the observation fields. A Feature's point
// geometry supplies the coordinates.
func DecodeJSON(body []byte) (*Submission, error) {
	var p payload
	err := json.Unmarshal(body, &p)
	if err != nil {
		return nil, fault.Wrap(err, fault.BadRequest, "invalid JSON body")
	}
	if p.Type != "Feature" {
		return p.submission(), nil
	}

	var f geojson.Feature
	err = json.Unmarshal(body, &f)
	if err != nil {
		return nil, fault.Wrap(err, fault.BadRequest, "invalid GeoJSON feature")
	}
	props, err := json.Marshal(f.Properties)
	if err != nil {
		return nil, fault.Wrap(err, fault.BadRequest, "invalid GeoJSON properties")
	}
	p = payload{}
	err = json.Unmarshal(props, &p)
	if err != nil {
		return nil, fault.Wrap(err, fault.BadRequest, "invalid GeoJSON properties")
	}
	sub := p.submission()

	if f.Geometry != nil {
		pt, ok := f.Geometry.(*geom.Point)
		if !ok {
			return nil, fault.New(fault.BadRequest, "GeoJSON geometry must be a Point")
		}
		if !pt.Empty() {
			lon, lat := pt.X(), pt.Y()
			sub.Longitude, sub.Latitude = &lon, &lat
		}
	}
	return sub, nil
}

// DecodeFields builds a submission from form fields, as sent in a
// multipart body. Image bytes are attached separately.
func DecodeFields(fields map[string]string) (*Submission, error) {
	lat, err := ParseFloat(fields["latitude"])
	if err != nil {
		return nil, fault.Wrap(err, fault.BadRequest, "invalid latitude")
	}
	lon, err := ParseFloat(fields["longitude"])
	if err != nil {
		return nil, fault.Wrap(err, fault.BadRequest, "invalid longitude")
	}
	p := payload{
		Category:        fields["category"],
		Animal:          fields["animal"],
		IncidentType:    fields["incident_type"],
		PoachingType:    fields["poaching_type"],
		MaintenanceType: fields["maintenance_type"],
		Notes:           fields["notes"],
		Latitude:        Float{lat},
		Longitude:       Float{lon},
		Timestamp:       fields["timestamp"],
		User:            fields["user"],
		Image:           fields["image"],
		ImageFilename:   fields["image_filename"],
	}
	return p.submission(), nil
}

// decodeImage returns the image bytes and MIME type of a base64
// string, tolerating a data: URL prefix.
func decodeImage(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var mime string
	if strings.HasPrefix(s, "data:") {
		meta, data, ok := strings.Cut(s, ",")
		if !ok {
			return nil, "", fmt.Errorf("malformed data URL")
		}
		mime, _, _ = strings.Cut(strings.TrimPrefix(meta, "data:"), ";")
		s = data
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		var rawErr error
		b, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if rawErr != nil {
			return nil, "", fmt.Errorf("invalid base64 image: %w", err)
		}
	}
	return b, mime, nil
}
