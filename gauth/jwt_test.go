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


package gauth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestClaims(t *testing.T) {
	secret := []byte("3af320667aba6a8b9ff9dc475adb382c")
	exp := float64(time.Now().Add(time.Hour).Unix())

	tests := []map[string]interface{}{
		{},
		{"iss": "ranger"},
		{"sub": "email_jane", "exp": exp},
	}
	for i, claims := range tests {
		tok, err := PutClaims(claims, secret)
		if err != nil {
			t.Fatalf("test %d: PutClaims failed: %v", i, err)
		}
		got, err := GetClaims("Bearer "+tok, secret)
		if err != nil {
			t.Fatalf("test %d: GetClaims failed: %v", i, err)
		}
		if len(got) != len(claims) {
			t.Errorf("test %d: got %v, want %v", i, got, claims)
		}
		for k, v := range claims {
			if got[k] != v {
				t.Errorf("test %d: claim %s = %v, want %v", i, k, got[k], v)
			}
		}
	}

	_, err := PutClaims(nil, nil)
	if !errors.Is(err, ErrNoSecret) {
		t.Errorf("PutClaims without secret: got %v, want %v", err, ErrNoSecret)
	}
	_, err = GetClaims("Bearer ", secret)
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("GetClaims without token: got %v, want %v", err, ErrNoToken)
	}

	// Tokens signed with another method are refused.
	hs384, err := jwt.NewWithClaims(jwt.SigningMethodHS384, jwt.MapClaims{"sub": "x"}).SignedString(secret)
	if err != nil {
		t.Fatalf("could not sign HS384 token: %v", err)
	}
	_, err = GetClaims(hs384, secret)
	if err == nil {
		t.Errorf("GetClaims accepted an HS384 token")
	}
}

func TestSession(t *testing.T) {
	secret := []byte("0123456789abcdef")
	want := Session{Subject: "email_jane", Email: "jane@example.org", Name: "Jane", Role: "ranger"}

	tok, err := PutSession(want, time.Now(), secret)
	if err != nil {
		t.Fatalf("PutSession failed with unexpected error: %v", err)
	}
	got, err := GetSession("Bearer "+tok, secret)
	if err != nil {
		t.Fatalf("GetSession failed with unexpected error: %v", err)
	}
	if *got != want {
		t.Errorf("GetSession returned %+v, want %+v", *got, want)
	}

	claims, err := GetClaims(tok, secret)
	if err != nil {
		t.Fatalf("GetClaims failed: %v", err)
	}
	for _, k := range []string{"sub", "email", "name", "role", "iat", "exp"} {
		if _, ok := claims[k]; !ok {
			t.Errorf("session token missing claim %s", k)
		}
	}

	_, err = GetSession(tok, []byte("wrong secret"))
	if err == nil {
		t.Errorf("GetSession succeeded with the wrong secret")
	}

	stale, err := PutSession(want, time.Now().Add(-SessionTTL-time.Minute), secret)
	if err != nil {
		t.Fatalf("PutSession failed with unexpected error: %v", err)
	}
	_, err = GetSession(stale, secret)
	if err == nil {
		t.Errorf("GetSession accepted an expired token")
	}

	forever, err := PutClaims(map[string]interface{}{"sub": "email_jane"}, secret)
	if err != nil {
		t.Fatalf("PutClaims failed: %v", err)
	}
	_, err = GetSession(forever, secret)
	if err == nil {
		t.Errorf("GetSession accepted a token without expiry")
	}

	anon, err := PutSession(Session{Email: "x@example.org"}, time.Now(), secret)
	if err != nil {
		t.Fatalf("PutSession failed: %v", err)
	}
	_, err = GetSession(anon, secret)
	if err == nil {
		t.Errorf("GetSession accepted a token without subject")
	}
}
