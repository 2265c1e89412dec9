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
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ausocean/ranger/datastore"
	"github.com/ausocean/ranger/fault"
	"github.com/ausocean/ranger/gauth"
	"github.com/ausocean/ranger/model"
	"github.com/ausocean/ranger/pin"
)

const pinSubject = "Your ranger sign-in code"

type pinRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	PIN   string `json:"pin"`
}

// requestPINHandler handles POST /auth/request-pin, emailing a new
// passcode to the caller.
func (svc *service) requestPINHandler(c *fiber.Ctx) error {
	var req pinRequest
	err := c.BodyParser(&req)
	if err != nil {
		return fault.Wrap(err, fault.BadRequest, "invalid request body")
	}

	ctx := c.UserContext()
	code, err := svc.pins.Issue(ctx, req.Email, req.Name)
	switch {
	case errors.Is(err, pin.ErrInvalidEmail):
		return fault.New(fault.BadRequest, "invalid email address")
	case err != nil:
		return fault.Wrap(err, fault.Internal, "could not issue PIN")
	}

	text := fmt.Sprintf("Your sign-in code is %s. It expires in %d minutes.", code, int(pin.TTL/time.Minute))
	err = svc.notifier.Send(ctx, pin.NormalizeEmail(req.Email), pinSubject, text)
	if err != nil {
		return fault.Wrap(err, fault.UpstreamFailure, "could not send PIN")
	}
	return c.JSON(fiber.Map{"success": true, "message": "PIN sent"})
}

// verifyPINHandler handles POST /auth/verify-pin. A matching passcode
// signs the user in, creating the user on first login.
func (svc *service) verifyPINHandler(c *fiber.Ctx) error {
	var req pinRequest
	err := c.BodyParser(&req)
	if err != nil {
		return fault.Wrap(err, fault.BadRequest, "invalid request body")
	}

	ctx := c.UserContext()
	entry, err := svc.pins.Verify(ctx, req.Email, req.PIN)
	var mismatch *pin.MismatchError
	switch {
	case err == nil:
	case errors.Is(err, pin.ErrNotFound), errors.Is(err, pin.ErrInvalidEmail):
		return fault.New(fault.BadRequest, "%s", err.Error())
	case errors.Is(err, pin.ErrTooManyAttempts):
		return fault.New(fault.TooManyRequests, "%s", err.Error())
	case errors.As(err, &mismatch):
		return fault.New(fault.BadRequest, "%s", mismatch.Error())
	default:
		return fault.Wrap(err, fault.Internal, "could not verify PIN")
	}

	if svc.store == nil {
		return fault.New(fault.ServiceUnavailable, "database not available")
	}
	secret := svc.secrets[secretJWTSecret]
	if secret == "" {
		return fault.New(fault.ServiceUnavailable, "sessions not available")
	}

	user, err := svc.login(c, entry)
	if err != nil {
		return err
	}

	tok, err := gauth.PutSession(gauth.Session{
		Subject: user.ID,
		Email:   user.Email,
		Name:    user.Name,
		Role:    user.Role,
	}, svc.now(), []byte(secret))
	if err != nil {
		return fault.Wrap(err, fault.Internal, "could not issue token")
	}
	return c.JSON(fiber.Map{"success": true, "token": tok, "user": user})
}

// login records a sign-in for the user owning entry, creating the
// user if needed.
func (svc *service) login(c *fiber.Ctx, entry *pin.Entry) (*model.User, error) {
	ctx := c.UserContext()
	now := svc.now().UTC()

	user, err := model.FindUserByEmail(ctx, svc.store, entry.Email)
	switch {
	case errors.Is(err, datastore.ErrNoSuchEntity):
		id, err := model.FreeUserKey(ctx, svc.store, entry.Email)
		if err != nil {
			return nil, fault.Wrap(err, fault.UpstreamFailure, "could not create user")
		}
		user = &model.User{
			ID:        id,
			Email:     entry.Email,
			Name:      entry.Name,
			Role:      model.RoleRanger,
			Status:    model.StatusActive,
			Created:   now,
			Updated:   now,
			LastLogin: &now,
		}
		err = model.CreateUser(ctx, svc.store, user)
		if err != nil {
			return nil, fault.Wrap(err, fault.UpstreamFailure, "could not create user")
		}
		svc.log.Info("created user", "id", user.ID)
		return user, nil
	case err != nil:
		return nil, fault.Wrap(err, fault.UpstreamFailure, "could not look up user")
	}

	if user.Revoked() {
		return nil, fault.New(fault.Forbidden, "user access has been revoked")
	}
	user, err = model.UpdateUser(ctx, svc.store, user.ID, func(u *model.User) {
		u.LastLogin = &now
		if u.Name == "" {
			u.Name = entry.Name
		}
	})
	if err != nil {
		return nil, fault.Wrap(err, fault.UpstreamFailure, "could not update user")
	}
	return user, nil
}

// sessionHandler handles GET /auth/session, returning the session
// carried by the bearer token.
func (svc *service) sessionHandler(c *fiber.Ctx) error {
	secret := svc.secrets[secretJWTSecret]
	if secret == "" {
		return fault.New(fault.ServiceUnavailable, "sessions not available")
	}
	s, err := gauth.GetSession(c.Get(fiber.HeaderAuthorization), []byte(secret))
	if err != nil {
		return fault.Wrap(err, fault.Unauthorized, "invalid session")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":    s.Subject,
			"email": s.Email,
			"name":  s.Name,
			"role":  s.Role,
		},
	})
}
