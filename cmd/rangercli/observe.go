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
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ausocean/ranger/upload"
)

// observeFlags holds the observe command's flag values.
type observeFlags struct {
	fields   upload.Fields
	lat, lon float64
	accuracy float64
	altitude float64
	speed    float64
	heading  float64
	fixTime  string
	photo    string
	dryRun   bool
}

func newObserveCmd(cfg *config) *cobra.Command {
	var o observeFlags
	cmd := &cobra.Command{
		Use:   "observe",
		Short: "Record and upload one observation",
		Example: `  rangercli observe --category Sighting --animal Lion --lat -1.2921 --lon 36.8219
  rangercli observe --category Incident --incident-type Poaching --poaching-type Snare --photo snare.jpg --sink github`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runObserve(cmd, cfg, &o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.fields.Category, "category", "", "Sighting, Incident or Maintenance (required)")
	f.StringVar(&o.fields.Animal, "animal", "", "animal sighted")
	f.StringVar(&o.fields.IncidentType, "incident-type", "", "incident type")
	f.StringVar(&o.fields.PoachingType, "poaching-type", "", "poaching type: Carcass, Snare, Poacher or Fishing net/equipment")
	f.StringVar(&o.fields.MaintenanceType, "maintenance-type", "", "maintenance type")
	f.StringVar(&o.fields.Notes, "notes", "", "free-text notes")
	f.Float64Var(&o.lat, "lat", 0, "latitude in decimal degrees")
	f.Float64Var(&o.lon, "lon", 0, "longitude in decimal degrees")
	f.Float64Var(&o.accuracy, "accuracy", 0, "fix accuracy in metres")
	f.Float64Var(&o.altitude, "altitude", 0, "altitude in metres")
	f.Float64Var(&o.speed, "speed", 0, "speed in metres per second")
	f.Float64Var(&o.heading, "heading", 0, "heading in degrees from true north")
	f.StringVar(&o.fixTime, "fix-time", "", "time of the fix, RFC 3339 (default now)")
	f.StringVar(&o.photo, "photo", "", "photo file to attach")
	f.BoolVar(&o.dryRun, "dry-run", false, "print the payload instead of uploading it")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

// fix returns the position fix given by the flags, or nil if no
// position was given.
func (o *observeFlags) fix(cmd *cobra.Command) (*upload.Fix, error) {
	changed := cmd.Flags().Changed
	if !changed("lat") && !changed("lon") {
		return nil, nil
	}
	if !changed("lat") || !changed("lon") {
		return nil, errors.New("--lat and --lon must be given together")
	}

	fix := &upload.Fix{Latitude: o.lat, Longitude: o.lon}
	for _, v := range []struct {
		name string
		val  float64
		dst  **float64
	}{
		{"accuracy", o.accuracy, &fix.Accuracy},
		{"altitude", o.altitude, &fix.Altitude},
		{"speed", o.speed, &fix.Speed},
		{"heading", o.heading, &fix.Heading},
	} {
		if changed(v.name) {
			val := v.val
			*v.dst = &val
		}
	}
	if o.fixTime != "" {
		t, err := time.Parse(time.RFC3339, o.fixTime)
		if err != nil {
			return nil, fmt.Errorf("invalid --fix-time %q: %w", o.fixTime, err)
		}
		fix.Time = t
	}
	return fix, fix.Validate()
}

func runObserve(cmd *cobra.Command, cfg *config, o *observeFlags) error {
	format, err := upload.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	fix, err := o.fix(cmd)
	if err != nil {
		return err
	}

	var photo *upload.Photo
	if o.photo != "" {
		data, err := os.ReadFile(o.photo)
		if err != nil {
			return fmt.Errorf("read photo: %w", err)
		}
		photo = &upload.Photo{Filename: filepath.Base(o.photo), Data: data}
	}

	p, err := upload.NewBuilder(cfg.User).Build(format, o.fields, fix, photo)
	if err != nil {
		return err
	}
	log.Debug("built observation", "id", p.ID, "format", format, "located", fix != nil, "photo", photo != nil)

	if o.dryRun {
		b, err := p.Marshal()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	}

	tr, err := cfg.transport()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	r, err := tr.Send(ctx, p)
	if err != nil {
		return fmt.Errorf("upload to %s: %w", cfg.Sink, err)
	}
	log.Info("uploaded observation", "id", r.ID, "sink", cfg.Sink, "location", r.Location)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", r.ID, r.Location)
	return nil
}
