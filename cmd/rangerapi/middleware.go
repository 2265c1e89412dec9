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
	"crypto/subtle"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ausocean/ranger/fault"
)

// keyMatches compares a presented key with the expected key in
// constant time. An empty expected key matches nothing.
func keyMatches(got, want string) bool {
	return want != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// requireKey returns middleware accepting requests whose header
// carries key, optionally after an auth scheme such as "Bearer".
func requireKey(header, scheme string, key func() string, what string) fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:" + header,
		AuthScheme: scheme,
		Validator: func(c *fiber.Ctx, got string) (bool, error) {
			if !keyMatches(got, key()) {
				return false, fault.New(fault.Unauthorized, "invalid %s", what)
			}
			return true, nil
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fault.Is(err, fault.Unauthorized) {
				return err
			}
			return fault.New(fault.Unauthorized, "missing %s", what)
		},
	})
}

// apiKeyAuth guards the observation, water-monitoring and fire routes.
func (svc *service) apiKeyAuth() fiber.Handler {
	return requireKey("X-API-Key", "", func() string { return svc.secrets[secretAPIKey] }, "API key")
}

// adminAuth guards the user administration routes.
func (svc *service) adminAuth() fiber.Handler {
	return requireKey("X-Admin-Key", "", func() string { return svc.secrets[secretAdminKey] }, "admin key")
}

// cronAuth guards the scheduled job routes.
func (svc *service) cronAuth() fiber.Handler {
	return requireKey(fiber.HeaderAuthorization, "Bearer", func() string { return svc.secrets[secretCronSecret] }, "cron secret")
}

// rateLimit returns a sliding window limiter keyed by client IP.
func rateLimit(n int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               n,
		Expiration:        window,
		LimiterMiddleware: limiter.SlidingWindow{},
		LimitReached: func(c *fiber.Ctx) error {
			return fault.New(fault.TooManyRequests, "too many requests, please try again later")
		},
	})
}
