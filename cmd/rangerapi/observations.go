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
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ausocean/ranger/fault"
	"github.com/ausocean/ranger/ingest"
)

// imageFields are the multipart file fields accepted as an image.
var imageFields = []string{"image", "photo"}

// createObservationHandler handles POST /observations. The body is
// JSON (a flat observation or a GeoJSON Feature) or a multipart form
// with an optional image file.
func (svc *service) createObservationHandler(c *fiber.Ctx) error {
	var sub *ingest.Submission
	var err error
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		sub, err = svc.decodeMultipart(c)
	} else {
		sub, err = ingest.DecodeJSON(c.Body())
	}
	if err != nil {
		return err
	}

	obs, err := svc.ingest.Create(c.UserContext(), sub)
	if err != nil {
		return err
	}
	observationsCreated.WithLabelValues(obs.Category).Inc()
	return ok(c, fiber.StatusCreated, obs)
}

// decodeMultipart builds a submission from a multipart form.
func (svc *service) decodeMultipart(c *fiber.Ctx) (*ingest.Submission, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fault.Wrap(err, fault.BadRequest, "invalid multipart body")
	}
	fields := make(map[string]string, len(form.Value))
	for k, v := range form.Value {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	sub, err := ingest.DecodeFields(fields)
	if err != nil {
		return nil, err
	}

	for _, name := range imageFields {
		files := form.File[name]
		if len(files) == 0 {
			continue
		}
		fh := files[0]
		f, err := fh.Open()
		if err != nil {
			svc.log.Warning("could not open uploaded image", "error", err)
			break
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			svc.log.Warning("could not read uploaded image", "error", err)
			break
		}
		sub.Image = data
		if ct := fh.Header.Get(fiber.HeaderContentType); ct != fiber.MIMEOctetStream {
			sub.ImageType = ct
		}
		if sub.ImageFilename == "" {
			sub.ImageFilename = fh.Filename
		}
		break
	}
	return sub, nil
}

// listObservationsHandler handles GET /observations, returning
// located observations newest first, as GeoJSON when format=geojson.
func (svc *service) listObservationsHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if strings.EqualFold(c.Query("format"), "geojson") {
		fc, err := svc.ingest.Features(ctx)
		if err != nil {
			return err
		}
		err = c.JSON(fc)
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return err
	}

	locs, err := svc.ingest.List(ctx)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "count": len(locs), "data": locs})
}

// createWaterReadingHandler handles POST /water-monitoring.
func (svc *service) createWaterReadingHandler(c *fiber.Ctx) error {
	sub, err := ingest.DecodeWaterJSON(c.Body())
	if err != nil {
		return err
	}
	w, err := svc.ingest.CreateWaterReading(c.UserContext(), sub)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, w)
}

// listWaterReadingsHandler handles GET /water-monitoring?limit=N.
func (svc *service) listWaterReadingsHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return fault.New(fault.BadRequest, "limit must not be negative")
	}
	readings, err := svc.ingest.ListWaterReadings(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "count": len(readings), "data": readings})
}
