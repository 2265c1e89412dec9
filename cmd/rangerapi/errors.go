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
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ausocean/ranger/fault"
)

// errorResponse is the body of every error response.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// errorHandler writes err as an errorResponse. Errors that are not a
// *fault.Error are reported as Internal with a generic message, except
// for fiber's own errors, which keep their status. The cause is only
// included outside production.
func (svc *service) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fault.Error
	var fbe *fiber.Error
	switch {
	case errors.As(err, &fe):
	case errors.As(err, &fbe):
		fe = &fault.Error{Kind: kindOfStatus(fbe.Code), Msg: fbe.Message}
	default:
		fe = fault.Wrap(err, fault.Internal, "internal server error")
	}

	status := fe.Kind.Status()
	if fbe != nil {
		status = fbe.Code
	}
	if status >= http.StatusInternalServerError {
		svc.log.Error("request failed", "method", c.Method(), "path", c.Path(), "kind", fe.Kind, "error", err)
	} else {
		svc.log.Debug("request rejected", "method", c.Method(), "path", c.Path(), "kind", fe.Kind, "error", err)
	}
	rejections.WithLabelValues(string(fe.Kind)).Inc()

	resp := errorResponse{Error: string(fe.Kind), Message: fe.Msg}
	if !svc.cfg.production {
		resp.Detail = fe.Detail()
	}
	return c.Status(status).JSON(resp)
}

// kindOfStatus maps an HTTP status to the closest fault kind.
func kindOfStatus(status int) fault.Kind {
	switch status {
	case http.StatusUnauthorized:
		return fault.Unauthorized
	case http.StatusForbidden:
		return fault.Forbidden
	case http.StatusNotFound:
		return fault.NotFound
	case http.StatusTooManyRequests:
		return fault.TooManyRequests
	case http.StatusServiceUnavailable:
		return fault.ServiceUnavailable
	case http.StatusBadGateway:
		return fault.UpstreamFailure
	}
	if status >= 400 && status < 500 {
		return fault.BadRequest
	}
	return fault.Internal
}

// ok writes a success response with the given status and data.
func ok(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "data": data})
}
