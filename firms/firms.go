/*
DESCRIPTION
  Client for the NASA FIRMS active fire area API.

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

// Package firms fetches active fire detections from NASA's Fire
// Information for Resource Management System (FIRMS).
package firms

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultBaseURL is the FIRMS API host.
const DefaultBaseURL = "https://firms.modaps.eosdis.nasa.gov"

// Day window limits accepted by the area API.
const (
	MinDays = 1
	MaxDays = 10
)

const defaultTimeout = 30 * time.Second

// Sensor identifies a satellite instrument.
type Sensor string

// Sensors.
const (
	VIIRS Sensor = "VIIRS"
	MODIS Sensor = "MODIS"
)

// Sensors lists the sensors fetched by FetchAll, in result order.
var Sensors = []Sensor{VIIRS, MODIS}

// Source returns the FIRMS near real-time source name for the sensor.
func (s Sensor) Source() string {
	switch s {
	case VIIRS:
		return "VIIRS_SNPP_NRT"
	case MODIS:
		return "MODIS_NRT"
	default:
		return string(s)
	}
}

// Fire is one active fire detection.
type Fire struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Brightness float64 `json:"brightness"`
	AcqDate    string  `json:"acq_date"` // YYYY-MM-DD.
	AcqTime    string  `json:"acq_time"` // HHMM, UTC.
	Confidence string  `json:"confidence"`
	FRP        float64 `json:"frp"` // Fire radiative power, MW.
	Satellite  string  `json:"satellite"`
	DayNight   string  `json:"daynight"`
	Sensor     Sensor  `json:"sensor"`
}

// Time returns the acquisition time.
func (f Fire) Time() (time.Time, error) {
	t := f.AcqTime
	for len(t) < 4 {
		t = "0" + t
	}
	return time.Parse("2006-01-02 1504", f.AcqDate+" "+t)
}

// ClampDays limits days to MinDays..MaxDays.
func ClampDays(days int) int {
	return min(max(days, MinDays), MaxDays)
}

// Client fetches fire detections.
type Client struct {
	baseURL string
	mapKey  string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// NewClient returns a client using the given FIRMS map key.
func NewClient(mapKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		mapKey:  mapKey,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the fires detected by sensor within area over the last
// days, which is clamped to MinDays..MaxDays.
func (c *Client) Fetch(ctx context.Context, sensor Sensor, area Area, days int) ([]Fire, error) {
	if c.mapKey == "" {
		return nil, errors.New("missing FIRMS map key")
	}
	url := fmt.Sprintf("%s/api/area/csv/%s/%s/%s/%d", c.baseURL, c.mapKey, sensor.Source(), area, ClampDays(days))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not fetch %s fires: %w", sensor, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("%s fetch returned %s: %s", sensor, resp.Status, strings.TrimSpace(string(body)))
	}
	return Parse(resp.Body, sensor)
}

// FetchAll fetches every sensor in Sensors concurrently and returns
// the combined detections. Any failure fails the whole fetch.
func (c *Client) FetchAll(ctx context.Context, area Area, days int) ([]Fire, error) {
	results := make([][]Fire, len(Sensors))
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range Sensors {
		g.Go(func() error {
			fires, err := c.Fetch(ctx, s, area, days)
			if err != nil {
				return err
			}
			results[i] = fires
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		return nil, err
	}

	var all []Fire
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// Parse reads FIRMS CSV, locating columns by header name. Rows
// without valid coordinates are skipped. Input lacking latitude and
// longitude columns, such as an error message, is an error.
func Parse(r io.Reader, sensor Sensor) ([]Fire, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read header: %w", err)
	}
	col := make(map[string]int)
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["latitude"]; !ok {
		return nil, fmt.Errorf("unexpected response: %q", strings.Join(header, ","))
	}
	if _, ok := col["longitude"]; !ok {
		return nil, fmt.Errorf("unexpected response: %q", strings.Join(header, ","))
	}

	field := func(rec []string, names ...string) string {
		for _, n := range names {
			if i, ok := col[n]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
		}
		return ""
	}
	num := func(s string) float64 {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}

	var fires []Fire
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("could not read %s data: %w", sensor, err)
		}
		lat, err := strconv.ParseFloat(field(rec, "latitude"), 64)
		if err != nil || lat < -90 || lat > 90 {
			continue
		}
		lon, err := strconv.ParseFloat(field(rec, "longitude"), 64)
		if err != nil || lon < -180 || lon > 180 {
			continue
		}
		fires = append(fires, Fire{
			Latitude:   lat,
			Longitude:  lon,
			Brightness: num(field(rec, "bright_ti4", "brightness")),
			AcqDate:    field(rec, "acq_date"),
			AcqTime:    field(rec, "acq_time"),
			Confidence: field(rec, "confidence"),
			FRP:        num(field(rec, "frp")),
			Satellite:  field(rec, "satellite"),
			DayNight:   field(rec, "daynight"),
			Sensor:     sensor,
		})
	}
	return fires, nil
}
