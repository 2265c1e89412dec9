/*
DESCRIPTION
  Signed session tokens.

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
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTTL is the lifetime of a session token.
const SessionTTL = 7 * 24 * time.Hour

// Errors returned by the token functions.
var (
	ErrNoSecret = errors.New("no signing secret")
	ErrNoToken  = errors.New("no token")
)

// Session identifies a signed-in user.
type Session struct {
	Subject string // User key.
	Email   string
	Name    string
	Role    string
}

// sessionClaims are the claims of a session token.
type sessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// hs256 is the only accepted signing method.
var hs256 = jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})

// PutClaims returns an HS256 token carrying claims.
func PutClaims(claims map[string]interface{}, secret []byte) (string, error) {
	return sign(jwt.MapClaims(claims), secret)
}

// GetClaims verifies tok and returns its claims. A leading "Bearer "
// is ignored. Expired tokens are rejected.
func GetClaims(tok string, secret []byte) (map[string]interface{}, error) {
	claims := jwt.MapClaims{}
	err := parse(tok, claims, secret)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// PutSession returns a token for s issued at now and valid for
// SessionTTL.
func PutSession(s Session, now time.Time, secret []byte) (string, error) {
	return sign(&sessionClaims{
		Email: s.Email,
		Name:  s.Name,
		Role:  s.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	}, secret)
}

// GetSession verifies a session token and returns its session. Tokens
// without a subject or an expiry are rejected.
func GetSession(tok string, secret []byte) (*Session, error) {
	var c sessionClaims
	err := parse(tok, &c, secret, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if c.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return &Session{Subject: c.Subject, Email: c.Email, Name: c.Name, Role: c.Role}, nil
}

func sign(claims jwt.Claims, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrNoSecret
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("could not sign token: %w", err)
	}
	return s, nil
}

func parse(tok string, claims jwt.Claims, secret []byte, opts ...jwt.ParserOption) error {
	tok = strings.TrimSpace(strings.TrimPrefix(tok, "Bearer "))
	if tok == "" {
		return ErrNoToken
	}
	if len(secret) == 0 {
		return ErrNoSecret
	}
	_, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, append(opts, hs256)...)
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	return nil
}
