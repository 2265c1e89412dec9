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
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ausocean/ranger/upload"
)

// Defaults.
const (
	defaultAPIURL    = "http://localhost:8080"
	defaultGitHubDir = "observations"
)

// config holds settings merged from flags, RANGER_* environment
// variables and an optional config file, in that order of precedence.
type config struct {
	Debug  bool         `mapstructure:"debug"`
	User   string       `mapstructure:"user"`
	Sink   string       `mapstructure:"sink"`
	Format string       `mapstructure:"format"`
	API    apiConfig    `mapstructure:"api"`
	GitHub githubConfig `mapstructure:"github"`
}

type apiConfig struct {
	URL string `mapstructure:"url"`
	Key string `mapstructure:"key"`
}

type githubConfig struct {
	Owner  string `mapstructure:"owner"`
	Repo   string `mapstructure:"repo"`
	Token  string `mapstructure:"token"`
	Dir    string `mapstructure:"dir"`
	Branch string `mapstructure:"branch"`
	URL    string `mapstructure:"url"`
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"debug":         "debug",
	"user":          "user",
	"sink":          "sink",
	"format":        "format",
	"api-url":       "api.url",
	"api-key":       "api.key",
	"github-owner":  "github.owner",
	"github-repo":   "github.repo",
	"github-token":  "github.token",
	"github-dir":    "github.dir",
	"github-branch": "github.branch",
}

// loadConfig reads the configuration for cmd. An explicit config file
// must exist; the default ./rangercli.yaml is optional.
func loadConfig(cmd *cobra.Command, file string) (*config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("rangercli")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RANGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("sink", "api")
	v.SetDefault("format", string(upload.FormatJSON))
	v.SetDefault("api.url", defaultAPIURL)
	v.SetDefault("github.dir", defaultGitHubDir)
	v.SetDefault("github.url", upload.DefaultGitHubURL)

	for name, key := range flagKeys {
		fl := cmd.Flags().Lookup(name)
		if fl == nil {
			continue
		}
		err := v.BindPFlag(key, fl)
		if err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg config
	err = v.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// transport returns the transport for the configured sink.
func (c *config) transport() (upload.Transport, error) {
	switch c.Sink {
	case "api":
		if c.API.Key == "" {
			return nil, errors.New("API key is required (--api-key or RANGER_API_KEY)")
		}
		return upload.NewAPITransport(c.API.URL, c.API.Key), nil
	case "github":
		if c.GitHub.Owner == "" || c.GitHub.Repo == "" {
			return nil, errors.New("GitHub owner and repo are required")
		}
		if c.GitHub.Token == "" {
			return nil, errors.New("GitHub token is required (--github-token or RANGER_GITHUB_TOKEN)")
		}
		opts := []upload.GitHubOption{upload.WithDir(c.GitHub.Dir), upload.WithGitHubURL(c.GitHub.URL)}
		if c.GitHub.Branch != "" {
			opts = append(opts, upload.WithBranch(c.GitHub.Branch))
		}
		return upload.NewGitHubTransport(c.GitHub.Owner, c.GitHub.Repo, c.GitHub.Token, opts...), nil
	default:
		return nil, fmt.Errorf("unknown sink %q, must be api or github", c.Sink)
	}
}
