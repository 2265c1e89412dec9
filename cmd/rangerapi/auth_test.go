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
	"context"
	"net/http"
	"regexp"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausocean/ranger/model"
)

var codeRe = regexp.MustCompile(`\b\d{6}\b`)

// requestPIN requests a passcode for email and returns the code
// delivered to the mailbox.
func requestPIN(t *testing.T, app *fiber.App, mb *mailbox, email string) string {
	status, reply := do(t, app, http.MethodPost, "/auth/request-pin", map[string]string{"email": email, "name": "Wanjiru"}, nil)
	require.Equal(t, http.StatusOK, status, reply)
	assert.Equal(t, "PIN sent", reply["message"])

	msgs := mb.messages()
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	require.Equal(t, email, last.To)
	code := codeRe.FindString(last.Text)
	require.NotEmpty(t, code, "no code in %q", last.Text)
	return code
}

func TestPINLogin(t *testing.T) {
	s, mb := newTestService(t, nil)
	app := start(t, s)

	const email = "wanjiru@example.com"
	code := requestPIN(t, app, mb, email)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	status, reply := do(t, app, http.MethodPost, "/auth/verify-pin", map[string]string{"email": email, "pin": wrong}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid PIN, 4 attempts remaining", reply["message"])

	status, reply = do(t, app, http.MethodPost, "/auth/verify-pin", map[string]string{"email": email, "pin": code}, nil)
	require.Equal(t, http.StatusOK, status, reply)
	token, _ := reply["token"].(string)
	require.NotEmpty(t, token)
	user, _ := reply["user"].(map[string]interface{})
	assert.Equal(t, email, user["email"])
	assert.Equal(t, "Wanjiru", user["name"])
	assert.Equal(t, model.RoleRanger, user["role"])
	assert.NotNil(t, user["last_login"])

	stored, err := model.GetUser(context.Background(), s.store, model.UserKey(email))
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, stored.Status)

	status, reply = do(t, app, http.MethodGet, "/auth/session", nil, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, status, reply)
	session, _ := reply["user"].(map[string]interface{})
	assert.Equal(t, model.UserKey(email), session["id"])
	assert.Equal(t, email, session["email"])

	// A consumed code cannot be reused.
	status, reply = do(t, app, http.MethodPost, "/auth/verify-pin", map[string]string{"email": email, "pin": code}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "PIN not found or expired", reply["message"])

	status, _ = do(t, app, http.MethodGet, "/auth/session", nil, map[string]string{"Authorization": "Bearer nonsense"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestPINErrors(t *testing.T) {
	s, mb := newTestService(t, nil)
	app := start(t, s)

	status, reply := do(t, app, http.MethodPost, "/auth/request-pin", map[string]string{"email": "not an email"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid email address", reply["message"])

	const email = "guess@example.com"
	code := requestPIN(t, app, mb, email)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 0; i < 5; i++ {
		status, _ = do(t, app, http.MethodPost, "/auth/verify-pin", map[string]string{"email": email, "pin": wrong}, nil)
		require.Equal(t, http.StatusBadRequest, status)
	}
	status, reply = do(t, app, http.MethodPost, "/auth/verify-pin", map[string]string{"email": email, "pin": code}, nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "TooManyRequests", reply["error"])
}

func TestPINRevoked(t *testing.T) {
	s, mb := newTestService(t, nil)
	app := start(t, s)

	const email = "former@example.com"
	err := model.CreateUser(context.Background(), s.store, &model.User{Email: email, Role: model.RoleRanger, Status: model.StatusRevoked})
	require.NoError(t, err)

	code := requestPIN(t, app, mb, email)
	status, reply := do(t, app, http.MethodPost, "/auth/verify-pin", map[string]string{"email": email, "pin": code}, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "user access has been revoked", reply["message"])
}

func TestPINSharedLocalPart(t *testing.T) {
	s, mb := newTestService(t, nil)
	app := start(t, s)
	ctx := context.Background()

	err := model.CreateUser(ctx, s.store, &model.User{Email: "alice@ranger.org", Role: model.RoleAdmin, Status: model.StatusActive})
	require.NoError(t, err)
	err = model.CreateUser(ctx, s.store, &model.User{Email: "sam@ranger.org", Role: model.RoleRanger, Status: model.StatusRevoked})
	require.NoError(t, err)

	tests := []struct {
		email  string
		wantID string
	}{
		{"alice@elsewhere.com", "email_alice_2"},
		{"sam@elsewhere.com", "email_sam_2"},
	}

	for i, test := range tests {
		code := requestPIN(t, app, mb, test.email)
		status, reply := do(t, app, http.MethodPost, "/auth/verify-pin", map[string]string{"email": test.email, "pin": code}, nil)
		require.Equal(t, http.StatusOK, status, "test %d: %v", i, reply)
		user, _ := reply["user"].(map[string]interface{})
		assert.Equal(t, test.wantID, user["id"], "test %d", i)
		assert.Equal(t, test.email, user["email"], "test %d", i)
		assert.Equal(t, model.RoleRanger, user["role"], "test %d", i)
	}

	admin, err := model.GetUser(ctx, s.store, "email_alice")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, admin.Role)
	assert.Nil(t, admin.LastLogin, "existing user was signed in")

	// A second login by the same address reuses its own record.
	code := requestPIN(t, app, mb, "alice@elsewhere.com")
	status, reply := do(t, app, http.MethodPost, "/auth/verify-pin", map[string]string{"email": "alice@elsewhere.com", "pin": code}, nil)
	require.Equal(t, http.StatusOK, status, reply)
	user, _ := reply["user"].(map[string]interface{})
	assert.Equal(t, "email_alice_2", user["id"])
}

func TestPINMailFailure(t *testing.T) {
	s, mb := newTestService(t, nil)
	app := start(t, s)
	mb.fail = true

	status, reply := do(t, app, http.MethodPost, "/auth/request-pin", map[string]string{"email": "someone@example.com"}, nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "could not send PIN", reply["message"])
}

func TestPartialMailSecrets(t *testing.T) {
	for _, key := range []string{"mailjetPublicKey", "mailjetPrivateKey"} {
		s, mb := newTestService(t, nil)
		s.secrets[key] = "half-" + key
		app := start(t, s)

		code := requestPIN(t, app, mb, "partial@example.com")
		assert.Len(t, code, 6, key)
	}
}
