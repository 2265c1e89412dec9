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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ausocean/ranger/blob"
	"github.com/ausocean/ranger/firms"
	"github.com/ausocean/ranger/notify"
)

// Defaults.
const (
	defaultArea            = "33.9,-4.7,41.9,5.0" // Kenya.
	defaultRateLimitMax    = 100
	defaultRateLimitWindow = 15 * time.Minute
	defaultAuthLimitMax    = 10
	defaultUserCacheTTL    = time.Minute
	defaultFireDays        = 1
	defaultPINSweep        = "* * * * *"
)

// Secret names.
const (
	secretAPIKey     = "apiKey"
	secretAdminKey   = "adminKey"
	secretCronSecret = "cronSecret"
	secretJWTSecret  = "jwtSecret"
	secretFIRMSKey   = "firmsMapKey"
)

// config holds settings read from the environment.
type config struct {
	production      bool
	storeID         string // Firestore project[/database].
	credentials     string // Firestore credentials file or gs:// URL.
	bucket          string // Image bucket.
	minio           blob.MinioConfig
	recipients      []string      // Notification recipients.
	sender          string        // Notification sender.
	notifyPeriod    time.Duration // Minimum time between repeat fire alerts.
	mapURL          string
	firmsArea       firms.Area // Area fetched from FIRMS.
	alertArea       firms.Area // Area that triggers fire alerts.
	fireDays        int        // Days of fire data fetched by the fire check.
	fireSchedule    string     // Fire check cron spec, or empty.
	pinSweep        string     // PIN sweep cron spec.
	timezone        string     // Location of cron schedules.
	rateLimitMax    int
	rateLimitWindow time.Duration
	authLimitMax    int
	userCacheTTL    time.Duration
	failClosed      bool // Reject submissions when user status is unknown.
}

// loadConfig reads the configuration using getenv, normally os.Getenv.
func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{
		production:      getenv("ENVIRONMENT") == "production",
		storeID:         getenv("RANGER_STORE_ID"),
		credentials:     getenv("RANGER_CREDENTIALS"),
		bucket:          getenv("RANGER_BUCKET"),
		recipients:      notify.ParseRecipients(getenv("NOTIFY_RECIPIENTS")),
		sender:          getenv("NOTIFY_SENDER"),
		mapURL:          getenv("MAP_URL"),
		fireSchedule:    strings.TrimSpace(getenv("FIRE_CHECK_SCHEDULE")),
		pinSweep:        defaultPINSweep,
		timezone:        getenv("SCHEDULE_TIMEZONE"),
		rateLimitMax:    defaultRateLimitMax,
		rateLimitWindow: defaultRateLimitWindow,
		authLimitMax:    defaultAuthLimitMax,
		userCacheTTL:    defaultUserCacheTTL,
		fireDays:        defaultFireDays,
		failClosed:      getenv("REVOCATION_FAIL_CLOSED") == "true",
		minio: blob.MinioConfig{
			Endpoint:  getenv("MINIO_ENDPOINT"),
			AccessKey: getenv("MINIO_ACCESS_KEY"),
			SecretKey: getenv("MINIO_SECRET_KEY"),
			Secure:    getenv("MINIO_SECURE") != "false",
		},
	}
	if cfg.storeID == "" {
		cfg.storeID = projectID
	}
	if cfg.bucket == "" {
		cfg.bucket = projectID + "-images"
	}
	if cfg.timezone == "" {
		cfg.timezone = "UTC"
	}
	if v := getenv("PIN_SWEEP_SCHEDULE"); v != "" {
		cfg.pinSweep = v
	}

	var err error
	area := getenv("FIRMS_AREA")
	if area == "" {
		area = defaultArea
	}
	cfg.firmsArea, err = firms.ParseArea(area)
	if err != nil {
		return cfg, fmt.Errorf("invalid FIRMS_AREA: %w", err)
	}
	cfg.alertArea = cfg.firmsArea
	if v := getenv("ALERT_AREA"); v != "" {
		cfg.alertArea, err = firms.ParseArea(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid ALERT_AREA: %w", err)
		}
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"RATE_LIMIT_MAX", &cfg.rateLimitMax},
		{"AUTH_RATE_LIMIT_MAX", &cfg.authLimitMax},
		{"FIRE_CHECK_DAYS", &cfg.fireDays},
	}
	for _, v := range ints {
		s := getenv(v.name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid %s: %q", v.name, s)
		}
		*v.dst = n
	}
	cfg.fireDays = firms.ClampDays(cfg.fireDays)

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"RATE_LIMIT_WINDOW", &cfg.rateLimitWindow},
		{"USER_CACHE_TTL", &cfg.userCacheTTL},
		{"NOTIFY_PERIOD", &cfg.notifyPeriod},
	}
	for _, v := range durations {
		s := getenv(v.name)
		if s == "" {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil || d < 0 {
			return cfg, fmt.Errorf("invalid %s: %q", v.name, s)
		}
		*v.dst = d
	}
	return cfg, nil
}
