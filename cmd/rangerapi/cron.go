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
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/kortschak/sun"
	cron "github.com/robfig/cron/v3"
)

// jobTimeout bounds a single scheduled run.
const jobTimeout = 2 * time.Minute

var (
	errNoTimeSpec = errors.New("no time spec specified for job")
	errNoLocation = errors.New("invalid solar cron: no coordinates")
)

// scheduler runs named jobs on cron schedules using robfig/cron.
// Solar schedules such as "@sunset" are supported through
// github.com/kortschak/sun.
type scheduler struct {
	cron *cron.Cron
	log  logging.Logger

	mu sync.Mutex
	// ids is a mapping from job name to cron id.
	ids map[string]cron.EntryID
	// specs is a mapping from job name to its spec line.
	specs map[string]string
}

// newScheduler returns a started scheduler using the named location.
func newScheduler(log logging.Logger, locationID string) (*scheduler, error) {
	loc, err := time.LoadLocation(locationID)
	if err != nil {
		return nil, err
	}
	c := cron.New(cron.WithParser(sun.Parser{}), cron.WithLocation(loc))
	c.Start()
	return &scheduler{
		cron:  c,
		log:   log,
		ids:   make(map[string]cron.EntryID),
		specs: make(map[string]string),
	}, nil
}

// Set installs, replaces or removes the named job. An empty spec
// removes the job. Setting a job with an unchanged spec does nothing.
func (s *scheduler) Set(name, spec string, job func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.ids[name]
	if ok && s.specs[name] == spec {
		return nil
	}
	if ok {
		s.cron.Remove(id)
		delete(s.ids, name)
		delete(s.specs, name)
		s.log.Info("removed job", "name", name)
	}
	if spec == "" {
		return nil
	}

	action := func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		start := time.Now()
		err := job(ctx)
		if err != nil {
			s.log.Error("job failed", "name", name, "error", err)
			return
		}
		s.log.Debug("job ran", "name", name, "took", time.Since(start))
	}
	id, err := s.cron.AddFunc(spec, action)
	if err != nil {
		return fmt.Errorf("failed to add cron spec %s to the cron scheduler: %w", spec, err)
	}
	s.ids[name] = id
	s.specs[name] = spec
	s.log.Info("scheduled job", "name", name, "spec", spec)
	return nil
}

// Next returns the next run time of the named job.
func (s *scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.ids[name]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// Stop stops the scheduler. Running jobs are not interrupted.
func (s *scheduler) Stop() {
	s.cron.Stop()
}

// cronSpec returns tod rendered as a cron spec line for the given
// location. Solar descriptors (@sunrise, @noon and @sunset, with an
// optional offset such as @sunset-1h) need coordinates; other specs
// are returned unchanged.
func cronSpec(tod string, lat, lon float64) (string, error) {
	tod = strings.TrimSpace(tod)
	if tod == "" {
		return "", errNoTimeSpec
	}
	if strings.HasPrefix(tod, "@sunrise") || strings.HasPrefix(tod, "@noon") || strings.HasPrefix(tod, "@sunset") {
		if math.IsNaN(lat) || math.IsNaN(lon) {
			return "", errNoLocation
		}
		return fmt.Sprintf("%s %v %v", tod, lat, lon), nil
	}
	return tod, nil
}
