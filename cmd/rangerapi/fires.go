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
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ausocean/ranger/fault"
	"github.com/ausocean/ranger/firms"
	"github.com/ausocean/ranger/notify"
)

// fireCheckResult is the reply of a fire check.
type fireCheckResult struct {
	Success      bool            `json:"success"`
	Checked      int             `json:"checked"`
	InRegion     int             `json:"in_region"`
	Alerted      bool            `json:"alerted"`
	Notification *notify.Summary `json:"notification,omitempty"`
}

// fetchFires fetches detections in the configured area from both
// sensors.
func (svc *service) fetchFires(ctx context.Context, days int) ([]firms.Fire, error) {
	if svc.secrets[secretFIRMSKey] == "" {
		return nil, fault.New(fault.ServiceUnavailable, "fire data not available")
	}
	fires, err := svc.firms.FetchAll(ctx, svc.cfg.firmsArea, days)
	if err != nil {
		return nil, fault.Wrap(err, fault.UpstreamFailure, "could not fetch fire data")
	}
	return fires, nil
}

// fireCheck fetches recent fires and alerts the recipients if any lie
// within the alert region.
func (svc *service) fireCheck(ctx context.Context) (*fireCheckResult, error) {
	fires, err := svc.fetchFires(ctx, svc.cfg.fireDays)
	if err != nil {
		return nil, err
	}
	inRegion := firms.Within(fires, svc.cfg.alertArea)
	fireDetections.WithLabelValues("area").Set(float64(len(fires)))
	fireDetections.WithLabelValues("region").Set(float64(len(inRegion)))

	res := &fireCheckResult{Success: true, Checked: len(fires), InRegion: len(inRegion)}
	if len(inRegion) == 0 {
		return res, nil
	}
	sum := svc.notifier.NotifyFires(ctx, inRegion)
	notifications.WithLabelValues(notify.KindFire, outcome(sum.Success)).Inc()
	res.Alerted = sum.Success
	res.Notification = &sum
	return res, nil
}

// firesHandler handles GET /fires?days=N, returning detections in the
// configured area as a GeoJSON feature collection tagged by sensor, or
// as a plain list when format=json.
func (svc *service) firesHandler(c *fiber.Ctx) error {
	days := firms.ClampDays(c.QueryInt("days", svc.cfg.fireDays))
	fires, err := svc.fetchFires(c.UserContext(), days)
	if err != nil {
		return err
	}
	if strings.EqualFold(c.Query("format"), "json") {
		return c.JSON(fiber.Map{"success": true, "days": days, "count": len(fires), "data": fires})
	}
	err = c.JSON(firms.FeatureCollection(fires))
	c.Set(fiber.HeaderContentType, "application/geo+json")
	return err
}

// fireCheckHandler handles GET /cron/fire-check.
func (svc *service) fireCheckHandler(c *fiber.Ctx) error {
	res, err := svc.fireCheck(c.UserContext())
	if err != nil {
		return err
	}
	svc.log.Info("fire check", "checked", res.Checked, "in_region", res.InRegion, "alerted", res.Alerted)
	return c.JSON(res)
}

// pinSweepHandler handles GET /cron/pin-sweep.
func (svc *service) pinSweepHandler(c *fiber.Ctx) error {
	n, err := svc.pins.Sweep(c.UserContext())
	if err != nil {
		return fault.Wrap(err, fault.UpstreamFailure, "could not sweep PINs")
	}
	return c.JSON(fiber.Map{"success": true, "swept": n})
}
