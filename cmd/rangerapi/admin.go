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
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ausocean/ranger/datastore"
	"github.com/ausocean/ranger/fault"
	"github.com/ausocean/ranger/model"
	"github.com/ausocean/ranger/pin"
)

// userRequest is the body of user create and update requests. Absent
// fields are left unchanged on update.
type userRequest struct {
	Email  string  `json:"email"`
	UID    string  `json:"uid"`
	Name   *string `json:"name"`
	Role   *string `json:"role"`
	Status *string `json:"status"`
}

// validate checks the role and status, if present.
func (r *userRequest) validate() error {
	if r.Role != nil && !model.ValidRole(*r.Role) {
		return fault.New(fault.BadRequest, "invalid role %q", *r.Role)
	}
	if r.Status != nil && !model.ValidStatus(*r.Status) {
		return fault.New(fault.BadRequest, "invalid status %q", *r.Status)
	}
	return nil
}

// storeOrFail returns the store, or a ServiceUnavailable error if
// there is none.
func (svc *service) storeOrFail() (datastore.Store, error) {
	if svc.store == nil {
		return nil, fault.New(fault.ServiceUnavailable, "database not available")
	}
	return svc.store, nil
}

// userError maps a store error for user id.
func userError(err error, id string) error {
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return fault.New(fault.NotFound, "user %s not found", id)
	}
	return fault.Wrap(err, fault.UpstreamFailure, "could not access user %s", id)
}

func (svc *service) listUsersHandler(c *fiber.Ctx) error {
	store, err := svc.storeOrFail()
	if err != nil {
		return err
	}
	users, err := model.GetUsers(c.UserContext(), store)
	if err != nil {
		return fault.Wrap(err, fault.UpstreamFailure, "could not get users")
	}
	return c.JSON(fiber.Map{"success": true, "count": len(users), "data": users})
}

func (svc *service) getUserHandler(c *fiber.Ctx) error {
	store, err := svc.storeOrFail()
	if err != nil {
		return err
	}
	id := c.Params("id")
	user, err := model.GetUser(c.UserContext(), store, id)
	if err != nil {
		return userError(err, id)
	}
	return ok(c, fiber.StatusOK, user)
}

// createUserHandler handles POST /admin/users. Role and status
// default to ranger and active.
func (svc *service) createUserHandler(c *fiber.Ctx) error {
	store, err := svc.storeOrFail()
	if err != nil {
		return err
	}
	var req userRequest
	err = c.BodyParser(&req)
	if err != nil {
		return fault.Wrap(err, fault.BadRequest, "invalid request body")
	}
	email := model.NormalizeEmail(req.Email)
	if !pin.ValidEmail(email) {
		return fault.New(fault.BadRequest, "invalid email address")
	}
	err = req.validate()
	if err != nil {
		return err
	}

	now := svc.now().UTC()
	user := &model.User{
		ID:      model.UserKey(email),
		UID:     strings.TrimSpace(req.UID),
		Email:   email,
		Role:    model.RoleRanger,
		Status:  model.StatusActive,
		Created: now,
		Updated: now,
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Status != nil {
		user.Status = *req.Status
	}

	err = model.CreateUser(c.UserContext(), store, user)
	switch {
	case errors.Is(err, datastore.ErrEntityExists):
		return fault.New(fault.BadRequest, "user %s already exists", user.ID)
	case err != nil:
		return fault.Wrap(err, fault.UpstreamFailure, "could not create user")
	}
	svc.log.Info("created user", "id", user.ID, "role", user.Role)
	return ok(c, fiber.StatusCreated, user)
}

// updateUserHandler handles PATCH /admin/users/:id.
func (svc *service) updateUserHandler(c *fiber.Ctx) error {
	store, err := svc.storeOrFail()
	if err != nil {
		return err
	}
	var req userRequest
	err = c.BodyParser(&req)
	if err != nil {
		return fault.Wrap(err, fault.BadRequest, "invalid request body")
	}
	err = req.validate()
	if err != nil {
		return err
	}

	id := c.Params("id")
	now := svc.now().UTC()
	user, err := model.UpdateUser(c.UserContext(), store, id, func(u *model.User) {
		if req.Name != nil {
			u.Name = strings.TrimSpace(*req.Name)
		}
		if req.Role != nil {
			u.Role = *req.Role
		}
		if req.Status != nil {
			u.Status = *req.Status
		}
		u.Updated = now
	})
	if err != nil {
		return userError(err, id)
	}
	svc.log.Info("updated user", "id", id, "role", user.Role, "status", user.Status)
	return ok(c, fiber.StatusOK, user)
}

func (svc *service) deleteUserHandler(c *fiber.Ctx) error {
	store, err := svc.storeOrFail()
	if err != nil {
		return err
	}
	id := c.Params("id")
	err = model.DeleteUser(c.UserContext(), store, id)
	if err != nil {
		return userError(err, id)
	}
	svc.log.Info("deleted user", "id", id)
	return c.JSON(fiber.Map{"success": true, "message": "user " + id + " deleted"})
}
