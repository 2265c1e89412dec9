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


// rangercli records a field observation from a position fix and
// uploads it to the ranger backend or to a GitHub repository.
package main

import (
	"fmt"
	"os"

	"github.com/ausocean/utils/logging"
	"github.com/spf13/cobra"
)

const version = "v0.1.0"

// log is the command logger, set before any subcommand runs.
var log logging.Logger

// newRootCmd returns the root command with its subcommands.
func newRootCmd() *cobra.Command {
	var configFile string
	var cfg config

	root := &cobra.Command{
		Use:           "rangercli",
		Short:         "Record and upload ranger field observations",
		Long:          "Builds sighting, incident and maintenance observations from a GPS fix and uploads them to the ranger API or a GitHub repository.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(cmd, configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = *c

			level := logging.Info
			if cfg.Debug {
				level = logging.Debug
			}
			log = logging.New(int8(level), cmd.ErrOrStderr(), true)
			return nil
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&configFile, "config", "", "config file (default ./rangercli.yaml)")
	f.Bool("debug", false, "log debug messages")
	f.String("user", "", "user recorded on observations")
	f.String("sink", "api", "upload destination: api or github")
	f.String("format", "json", "payload format: json or geojson")
	f.String("api-url", defaultAPIURL, "ranger API base URL")
	f.String("api-key", "", "ranger API key")
	f.String("github-owner", "", "GitHub repository owner")
	f.String("github-repo", "", "GitHub repository name")
	f.String("github-token", "", "GitHub access token")
	f.String("github-dir", defaultGitHubDir, "repository directory for observations")
	f.String("github-branch", "", "repository branch (default branch if empty)")

	root.AddCommand(newObserveCmd(&cfg))
	return root
}

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "rangercli:", err)
		os.Exit(1)
	}
}
