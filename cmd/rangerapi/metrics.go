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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	observationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranger_observations_created_total",
			Help: "Observations stored, by category.",
		},
		[]string{"category"},
	)
	rejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranger_request_errors_total",
			Help: "Requests that ended in an error, by error kind.",
		},
		[]string{"kind"},
	)
	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranger_notifications_total",
			Help: "Notifications dispatched, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	fireDetections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ranger_fire_detections",
			Help: "Fire detections found by the last fire check.",
		},
		[]string{"scope"},
	)
)

// outcome returns the metric label for a notification result.
func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
