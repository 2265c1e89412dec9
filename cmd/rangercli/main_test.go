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


package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns its output.
func execute(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	assert.Equal(t, "rangercli", root.Use)
	assert.NotEmpty(t, root.Short)

	observe, _, err := root.Find([]string{"observe"})
	require.NoError(t, err)
	assert.Equal(t, "observe", observe.Name())
	for _, name := range []string{"category", "animal", "incident-type", "poaching-type", "maintenance-type", "lat", "lon", "accuracy", "photo", "dry-run"} {
		assert.NotNil(t, observe.Flags().Lookup(name), "observe should have --%s flag", name)
	}
	for _, name := range []string{"sink", "format", "api-url", "api-key", "github-owner", "github-repo", "github-token"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "root should have --%s flag", name)
	}
}

func TestObserveDryRun(t *testing.T) {
	out, err := execute("observe", "--dry-run", "--user", "ranger1",
		"--category", "Sighting", "--animal", "Lion",
		"--lat", "-1.2921", "--lon", "36.8219", "--accuracy", "5",
		"--fix-time", "2026-03-14T12:30:00+03:00")
	require.NoError(t, err)

	var obs map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &obs), out)
	assert.Equal(t, "Sighting", obs["category"])
	assert.Equal(t, "Lion", obs["animal"])
	assert.Equal(t, "ranger1", obs["user"])
	assert.Equal(t, -1.2921, obs["latitude"])
	assert.Equal(t, 5.0, obs["accuracy"])
	assert.Equal(t, "2026-03-14T09:30:00Z", obs["timestamp"])
	assert.NotEmpty(t, obs["id"])
}

func TestObserveGeoJSON(t *testing.T) {
	out, err := execute("observe", "--dry-run", "--format", "geojson",
		"--category", "Maintenance", "--maintenance-type", "Fence repair",
		"--lat", "-1.3", "--lon", "36.9")
	require.NoError(t, err)

	var f struct {
		Type     string `json:"type"`
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &f), out)
	assert.Equal(t, "Feature", f.Type)
	assert.Equal(t, []float64{36.9, -1.3}, f.Geometry.Coordinates)
}

func TestObserveErrors(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"observe", "--animal", "Lion"}, "category"},
		{[]string{"observe", "--category", "Sighting", "--lat", "1"}, "--lat and --lon"},
		{[]string{"observe", "--category", "Sighting", "--lat", "91", "--lon", "1"}, "latitude"},
		{[]string{"observe", "--category", "Sighting", "--format", "kml", "--dry-run"}, "unknown format"},
		{[]string{"observe", "--category", "Sighting", "--format", "geojson", "--dry-run"}, "no position fix"},
		{[]string{"observe", "--category", "Sighting", "--sink", "ftp"}, "unknown sink"},
		{[]string{"observe", "--category", "Sighting", "--sink", "github", "--github-owner", "ausocean"}, "owner and repo"},
		{[]string{"observe", "--category", "Sighting", "--photo", "/nonexistent/photo.jpg", "--dry-run"}, "read photo"},
	}
	t.Setenv("RANGER_API_KEY", "")
	for _, test := range tests {
		_, err := execute(test.args...)
		if assert.Error(t, err, "%v", test.args) {
			assert.Contains(t, err.Error(), test.want, "%v", test.args)
		}
	}

	_, err := execute("observe", "--category", "Sighting")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestObserveUpload(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/observations", r.URL.Path)
		assert.Equal(t, "env-key", r.Header.Get("X-API-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"success":true,"data":{"id":"abc123"}}`)
	}))
	defer srv.Close()

	t.Setenv("RANGER_API_KEY", "env-key")
	t.Setenv("RANGER_API_URL", srv.URL)
	out, err := execute("observe", "--category", "Incident", "--incident-type", "Poaching", "--poaching-type", "Snare")
	require.NoError(t, err)
	assert.Equal(t, "abc123 "+srv.URL+"/observations/abc123\n", out)
	assert.Equal(t, "Snare", got["poaching_type"])
}

func TestConfigFile(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer file-token", r.Header.Get("Authorization"))
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"content":{"html_url":"https://github.com/ausocean/ranger-data/blob/main/`+filepath.Base(r.URL.Path)+`"}}`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	file := filepath.Join(dir, "rangercli.yaml")
	yaml := strings.Join([]string{
		"sink: github",
		"user: ranger7",
		"github:",
		"  owner: ausocean",
		"  repo: ranger-data",
		"  token: file-token",
		"  dir: field",
		"  url: " + srv.URL,
	}, "\n")
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0o600))

	out, err := execute("observe", "--config", file, "--category", "Sighting", "--animal", "Leopard")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.True(t, strings.HasPrefix(paths[0], "/repos/ausocean/ranger-data/contents/field/"), paths[0])
	assert.True(t, strings.HasSuffix(paths[0], ".json"), paths[0])
	assert.Contains(t, out, "https://github.com/ausocean/ranger-data/blob/main/")

	_, err = execute("observe", "--config", filepath.Join(dir, "missing.yaml"), "--category", "Sighting", "--dry-run")
	assert.Error(t, err, "an explicit config file must exist")
}
