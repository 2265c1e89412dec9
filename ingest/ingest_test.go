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
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/ausocean/ranger/blob"
	"github.com/ausocean/ranger/datastore"
	"github.com/ausocean/ranger/fault"
	"github.com/ausocean/ranger/model"
	"github.com/ausocean/ranger/notify"
)

var testTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// testNotifier records the incidents it is asked to notify.
type testNotifier struct {
	incidents []*model.Observation
}

func (n *testNotifier) NotifyIncident(ctx context.Context, obs *model.Observation) notify.Summary {
	n.incidents = append(n.incidents, obs)
	return notify.Summary{Success: true}
}

// brokenStore fails every read, and optionally every write.
type brokenStore struct {
	datastore.Store
	failWrites bool
}

var errBroken = errors.New("store unreachable")

func (s *brokenStore) Get(ctx context.Context, key *datastore.Key, dst datastore.Entity) error {
	return errBroken
}

func (s *brokenStore) GetAll(ctx context.Context, q datastore.Query, dst interface{}) ([]*datastore.Key, error) {
	return nil, errBroken
}

func (s *brokenStore) Put(ctx context.Context, key *datastore.Key, src datastore.Entity) (*datastore.Key, error) {
	if s.failWrites {
		return nil, errBroken
	}
	return s.Store.Put(ctx, key, src)
}

func float(v float64) *float64 { return &v }

func newTestService(t *testing.T, store datastore.Store, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return testTime })}, opts...)
	return NewService(store, (*logging.TestLogger)(t), opts...)
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name string
		sub  Submission
		want string // Substring of the error message, or empty for success.
	}{
		{"sighting", Submission{Category: "Sighting", Animal: "Lion", Latitude: float(-1.2921), Longitude: float(36.8219)}, ""},
		{"unlocated maintenance", Submission{Category: "Maintenance", MaintenanceType: "Fence repair"}, ""},
		{"non-poaching incident", Submission{Category: "Incident", IncidentType: "Fire"}, ""},
		{"poaching incident", Submission{Category: "Incident", IncidentType: "Poaching", PoachingType: "Snare"}, ""},
		{"missing category", Submission{Animal: "Lion"}, "category is required"},
		{"unknown category", Submission{Category: "Picnic"}, "invalid category"},
		{"sighting without animal", Submission{Category: "Sighting"}, "animal is required"},
		{"incident without type", Submission{Category: "Incident"}, "incident_type is required"},
		{"maintenance without type", Submission{Category: "Maintenance"}, "maintenance_type is required"},
		{"poaching without type", Submission{Category: "Incident", IncidentType: "Poaching"}, "poaching_type is required"},
		{"snare keyword", Submission{Category: "Incident", IncidentType: "Snare found"}, "poaching_type is required"},
		{"bad poaching type", Submission{Category: "Incident", IncidentType: "Illegal hunting", PoachingType: "Spear"}, "invalid poaching_type"},
		{"latitude range", Submission{Category: "Sighting", Animal: "Lion", Latitude: float(91), Longitude: float(0)}, "latitude must be"},
		{"longitude range", Submission{Category: "Sighting", Animal: "Lion", Latitude: float(0), Longitude: float(-181)}, "longitude must be"},
		{"half a pair", Submission{Category: "Sighting", Animal: "Lion", Latitude: float(1)}, "supplied together"},
		{"bad timestamp", Submission{Category: "Sighting", Animal: "Lion", Timestamp: "yesterday"}, "invalid timestamp"},
	}

	ctx := context.Background()
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			store := datastore.NewMemStore()
			svc := newTestService(t, store)
			obs, err := svc.Create(ctx, &test.sub)

			stored, getErr := model.GetObservations(ctx, store)
			require.NoError(t, getErr)

			if test.want == "" {
				require.NoError(t, err)
				assert.NotEmpty(t, obs.ID)
				assert.Len(t, stored, 1)
				return
			}
			require.Error(t, err)
			assert.True(t, fault.Is(err, fault.BadRequest), "got kind %s", fault.KindOf(err))
			assert.Contains(t, err.Error(), test.want)
			assert.Empty(t, stored, "invalid submission was persisted")
		})
	}
}

func TestCreateLion(t *testing.T) {
	ctx := context.Background()
	store := datastore.NewMemStore()
	svc := newTestService(t, store)

	sub, err := DecodeJSON([]byte(`{"category":"Sighting","animal":"Lion","latitude":-1.2921,"longitude":36.8219,"incident_type":"Fire"}`))
	require.NoError(t, err)
	obs, err := svc.Create(ctx, sub)
	require.NoError(t, err)

	assert.NotEmpty(t, obs.ID)
	assert.Equal(t, "Lion", obs.Animal)
	assert.Empty(t, obs.IncidentType, "fields of other categories must be dropped")
	assert.Equal(t, testTime, obs.Timestamp)

	got, err := model.GetObservation(ctx, store, obs.ID)
	require.NoError(t, err)
	assert.Equal(t, obs, got)
}

func TestCreateTimestamp(t *testing.T) {
	svc := newTestService(t, datastore.NewMemStore())
	obs, err := svc.Create(context.Background(), &Submission{
		Category:  "Sighting",
		Animal:    "Elephant",
		Timestamp: "2026-01-02T15:04:05+03:00",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 2, 12, 4, 5, 0, time.UTC), obs.Timestamp)
	assert.Equal(t, time.UTC, obs.Timestamp.Location())
}

func TestCreateUnavailable(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Create(context.Background(), &Submission{Category: "Sighting", Animal: "Lion"})
	assert.True(t, fault.Is(err, fault.ServiceUnavailable))
	_, err = svc.List(context.Background())
	assert.True(t, fault.Is(err, fault.ServiceUnavailable))
}

func TestCreatePersistFailure(t *testing.T) {
	store := &brokenStore{Store: datastore.NewMemStore(), failWrites: true}
	svc := newTestService(t, store)
	_, err := svc.Create(context.Background(), &Submission{Category: "Sighting", Animal: "Lion"})
	assert.True(t, fault.Is(err, fault.UpstreamFailure))
	assert.ErrorIs(t, err, errBroken)
}

func TestCreateRevocation(t *testing.T) {
	ctx := context.Background()
	store := datastore.NewMemStore()
	require.NoError(t, model.CreateUser(ctx, store, &model.User{
		Email: "revoked@example.org", Name: "Rex Revoked", Role: model.RoleRanger, Status: model.StatusRevoked,
	}))
	require.NoError(t, model.CreateUser(ctx, store, &model.User{
		Email: "active@example.org", Name: "Ann Active", Role: model.RoleRanger, Status: model.StatusActive,
	}))
	svc := newTestService(t, store)

	tests := []struct {
		user string
		kind fault.Kind // Empty for success.
	}{
		{"revoked@example.org", fault.Forbidden},
		{"REVOKED@example.org", fault.Forbidden},
		{"email_revoked", fault.Forbidden},
		{"rex", fault.Forbidden},
		{"active@example.org", ""},
		{"stranger@example.org", ""},
		{"", ""},
	}

	for _, test := range tests {
		_, err := svc.Create(ctx, &Submission{Category: "Sighting", Animal: "Lion", User: test.user})
		if test.kind == "" {
			assert.NoError(t, err, "user %q", test.user)
			continue
		}
		assert.True(t, fault.Is(err, test.kind), "user %q: got %v", test.user, err)
	}
}

func TestCreateLookupFailure(t *testing.T) {
	ctx := context.Background()
	store := &brokenStore{Store: datastore.NewMemStore()}
	sub := Submission{Category: "Sighting", Animal: "Lion", User: "someone@example.org"}

	obs, err := newTestService(t, store).Create(ctx, &sub)
	require.NoError(t, err, "lookup failures are fail-open by default")
	assert.NotEmpty(t, obs.ID)

	_, err = newTestService(t, store, WithFailClosed()).Create(ctx, &sub)
	assert.True(t, fault.Is(err, fault.ServiceUnavailable))
}

func TestCreateImage(t *testing.T) {
	ctx := context.Background()
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg bytes"))

	tests := []struct {
		name     string
		sub      Submission
		fail     bool
		wantPath bool
		wantType string
	}{
		{"multipart", Submission{Image: png, ImageFilename: "my photo.png"}, false, true, "image/png"},
		{"data url", Submission{ImageBase64: dataURL, ImageFilename: "snap.jpg"}, false, true, "image/jpeg"},
		{"raw base64", Submission{ImageBase64: base64.RawStdEncoding.EncodeToString(png)}, false, true, "image/png"},
		{"undecodable", Submission{ImageBase64: "not base64!"}, false, false, ""},
		{"upload failure", Submission{Image: png, ImageFilename: "a.png"}, true, false, ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			store := datastore.NewMemStore()
			blobs := blob.NewMemStore()
			if test.fail {
				blobs.SetError(errors.New("bucket gone"))
			}
			svc := newTestService(t, store, WithBlobStore(blobs))

			sub := test.sub
			sub.Category, sub.Animal = "Sighting", "Zebra"
			obs, err := svc.Create(ctx, &sub)
			require.NoError(t, err, "image problems must not fail the submission")

			if !test.wantPath {
				assert.Empty(t, obs.ImagePath)
				assert.Empty(t, obs.ImageFilename)
				return
			}
			assert.True(t, strings.HasPrefix(obs.ImagePath, "observations/"), obs.ImagePath)
			o, ok := blobs.Get(obs.ImagePath)
			require.True(t, ok)
			assert.Equal(t, test.wantType, o.ContentType)

			stored, err := model.GetObservation(ctx, store, obs.ID)
			require.NoError(t, err)
			assert.Equal(t, obs.ImagePath, stored.ImagePath)
		})
	}
}

func TestCreateNotifies(t *testing.T) {
	ctx := context.Background()
	n := &testNotifier{}
	svc := newTestService(t, datastore.NewMemStore(), WithNotifier(n))

	subs := []Submission{
		{Category: "Incident", IncidentType: "Poaching", PoachingType: "Carcass"},
		{Category: "Incident", IncidentType: "Fire"},
		{Category: "Sighting", Animal: "Lion"},
		{Category: "Incident", IncidentType: "Trap found", PoachingType: "Snare"},
	}
	for i := range subs {
		_, err := svc.Create(ctx, &subs[i])
		require.NoError(t, err)
	}
	require.Len(t, n.incidents, 2)
	assert.Equal(t, "Poaching", n.incidents[0].IncidentType)
	assert.Equal(t, "Trap found", n.incidents[1].IncidentType)
	assert.NotEmpty(t, n.incidents[0].ID)
}

func TestListAndFeatures(t *testing.T) {
	ctx := context.Background()
	store := datastore.NewMemStore()
	svc := newTestService(t, store)

	subs := []Submission{
		{Category: "Sighting", Animal: "Lion", Latitude: float(-1.5), Longitude: float(36.5), Timestamp: "2026-03-01T00:00:00Z"},
		{Category: "Maintenance", MaintenanceType: "Road", Timestamp: "2026-03-02T00:00:00Z"},
		{Category: "Incident", IncidentType: "Poaching", PoachingType: "Poacher", Latitude: float(-2), Longitude: float(37), Timestamp: "2026-03-03T00:00:00Z"},
	}
	for i := range subs {
		_, err := svc.Create(ctx, &subs[i])
		require.NoError(t, err)
	}

	locs, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, locs, 2, "unlocated observations must be excluded")
	assert.Equal(t, "Incident", locs[0].Category)
	assert.Equal(t, "Poacher", locs[0].PoachingType)
	assert.Equal(t, "Lion", locs[1].Animal)

	fc, err := svc.Features(ctx)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	pt, ok := fc.Features[1].Geometry.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, []float64{36.5, -1.5}, pt.FlatCoords(), "coordinates must be longitude, latitude")
	assert.Equal(t, locs[1].ID, fc.Features[1].ID)

	b, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"coordinates":[37,-2]`)
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		lat, lon *float64
		animal   string
		wantErr  bool
	}{
		{"flat", `{"category":"Sighting","animal":"Lion","latitude":-1.5,"longitude":36.5}`, float(-1.5), float(36.5), "Lion", false},
		{"string coords", `{"category":"Sighting","animal":"Lion","latitude":"-1.5","longitude":" 36.5 "}`, float(-1.5), float(36.5), "Lion", false},
		{"empty coords", `{"category":"Sighting","animal":"Lion","latitude":"","longitude":null}`, nil, nil, "Lion", false},
		{"feature", `{"type":"Feature","geometry":{"type":"Point","coordinates":[36.5,-1.5]},"properties":{"category":"Sighting","animal":" Lion "}}`, float(-1.5), float(36.5), "Lion", false},
		{"feature without geometry", `{"type":"Feature","geometry":null,"properties":{"category":"Sighting","animal":"Lion"}}`, nil, nil, "Lion", false},
		{"feature polygon", `{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"properties":{}}`, nil, nil, "", true},
		{"bad number", `{"category":"Sighting","latitude":"north"}`, nil, nil, "", true},
		{"not json", `category=Sighting`, nil, nil, "", true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sub, err := DecodeJSON([]byte(test.body))
			if test.wantErr {
				assert.True(t, fault.Is(err, fault.BadRequest), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.animal, sub.Animal)
			assert.Equal(t, test.lat, sub.Latitude)
			assert.Equal(t, test.lon, sub.Longitude)
		})
	}
}

func TestDecodeFields(t *testing.T) {
	sub, err := DecodeFields(map[string]string{
		"category":      "Incident",
		"incident_type": "Poaching",
		"poaching_type": "Fishing net/equipment",
		"latitude":      "-3.25",
		"longitude":     "",
		"user":          " ranger@example.org ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Fishing net/equipment", sub.PoachingType)
	assert.Equal(t, float(-3.25), sub.Latitude)
	assert.Nil(t, sub.Longitude)
	assert.Equal(t, "ranger@example.org", sub.User)

	_, err = DecodeFields(map[string]string{"latitude": "x"})
	assert.True(t, fault.Is(err, fault.BadRequest))
}

func TestWaterReadings(t *testing.T) {
	ctx := context.Background()
	store := datastore.NewMemStore()
	svc := newTestService(t, store)

	tests := []struct {
		body string
		want string // Substring of the error message, or empty for success.
	}{
		{`{"site":"Dam 1","ph":"7.2","temperature_c":21.5,"timestamp":"2026-03-01T06:00:00Z"}`, ""},
		{`{"site":"River bend","ph":6.8,"turbidity_ntu":3,"latitude":-1,"longitude":36}`, ""},
		{`{"ph":7}`, "site is required"},
		{`{"site":"Dam 1","ph":15}`, "ph must be"},
		{`{"site":"Dam 1","turbidity_ntu":-1}`, "must not be negative"},
		{`{"site":"Dam 1","latitude":-1}`, "supplied together"},
	}
	for i, test := range tests {
		sub, err := DecodeWaterJSON([]byte(test.body))
		require.NoError(t, err)
		_, err = svc.CreateWaterReading(ctx, sub)
		if test.want == "" {
			assert.NoError(t, err, "test %d", i)
			continue
		}
		assert.True(t, fault.Is(err, fault.BadRequest), "test %d: %v", i, err)
		assert.Contains(t, err.Error(), test.want, "test %d", i)
	}

	readings, err := svc.ListWaterReadings(ctx, 0)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, "River bend", readings[0].Site, "newest first")
	assert.Equal(t, 7.2, *readings[1].PH)

	readings, err = svc.ListWaterReadings(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, readings, 1)
}
