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
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausocean/ranger/model"
)

func TestAdminUsers(t *testing.T) {
	s, _ := newTestService(t, nil)
	app := start(t, s)

	status, _ := do(t, app, http.MethodGet, "/admin/users", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = do(t, app, http.MethodGet, "/admin/users", nil, map[string]string{"X-Admin-Key": testAPIKey})
	assert.Equal(t, http.StatusUnauthorized, status, "API key is not an admin key")

	status, reply := do(t, app, http.MethodPost, "/admin/users", map[string]string{"email": " Kip@Example.com ", "name": "Kip"}, adminKey)
	require.Equal(t, http.StatusCreated, status, reply)
	user := data(t, reply)
	id, _ := user["id"].(string)
	assert.Equal(t, "email_kip", id)
	assert.Equal(t, "kip@example.com", user["email"])
	assert.Equal(t, model.RoleRanger, user["role"])
	assert.Equal(t, model.StatusActive, user["status"])

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"duplicate", http.MethodPost, "/admin/users", map[string]string{"email": "kip@example.com"}, http.StatusBadRequest},
		{"bad email", http.MethodPost, "/admin/users", map[string]string{"email": "kip"}, http.StatusBadRequest},
		{"bad role", http.MethodPost, "/admin/users", map[string]string{"email": "a@example.com", "role": "warden"}, http.StatusBadRequest},
		{"bad status", http.MethodPatch, "/admin/users/" + id, map[string]string{"status": "paused"}, http.StatusBadRequest},
		{"get unknown", http.MethodGet, "/admin/users/email_nobody", nil, http.StatusNotFound},
		{"patch unknown", http.MethodPatch, "/admin/users/email_nobody", map[string]string{"role": "admin"}, http.StatusNotFound},
		{"delete unknown", http.MethodDelete, "/admin/users/email_nobody", nil, http.StatusNotFound},
	}
	for _, test := range tests {
		status, reply := do(t, app, test.method, test.path, test.body, adminKey)
		assert.Equal(t, test.status, status, "%s: %v", test.name, reply)
	}

	status, reply = do(t, app, http.MethodPatch, "/admin/users/"+id, map[string]string{"role": "admin", "status": "revoked"}, adminKey)
	require.Equal(t, http.StatusOK, status, reply)
	user = data(t, reply)
	assert.Equal(t, model.RoleAdmin, user["role"])
	assert.Equal(t, model.StatusRevoked, user["status"])
	assert.Equal(t, "Kip", user["name"], "absent fields are unchanged")

	status, reply = do(t, app, http.MethodGet, "/admin/users/"+id, nil, adminKey)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, model.StatusRevoked, data(t, reply)["status"])

	// The revoked user can no longer submit observations.
	body := map[string]interface{}{"category": "Sighting", "animal": "Lion", "user": "kip@example.com"}
	status, _ = do(t, app, http.MethodPost, "/observations", body, apiKey)
	assert.Equal(t, http.StatusForbidden, status)

	status, reply = do(t, app, http.MethodGet, "/admin/users", nil, adminKey)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), reply["count"])

	status, _ = do(t, app, http.MethodDelete, "/admin/users/"+id, nil, adminKey)
	assert.Equal(t, http.StatusOK, status)
	status, _ = do(t, app, http.MethodGet, "/admin/users/"+id, nil, adminKey)
	assert.Equal(t, http.StatusNotFound, status)
}
