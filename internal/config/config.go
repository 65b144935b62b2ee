// Package config reads the signin configuration. Values are taken from a
// yaml file or environment variables or both.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jakopako/signin/internal/browser"
	"github.com/jakopako/signin/internal/notify"
	"github.com/jakopako/signin/internal/scheduler"
	"github.com/jakopako/signin/internal/site"
	"github.com/jakopako/signin/internal/store"
)

type Config struct {
	Store     store.Config          `yaml:"store"`
	Browser   browser.Config        `yaml:"browser"`
	Scheduler scheduler.Config      `yaml:"scheduler"`
	Notifier  notify.NotifierConfig `yaml:"notifier"`
	// SitesPath is a yaml file or a directory of yaml files with
	// additional site definitions.
	SitesPath string            `yaml:"sites_path" env:"SIGNIN_SITES_PATH"`
	Sites     []site.Definition `yaml:"sites"`
}

// NewConfig reads the configuration at path. A missing file is not an
// error, in that case only environment variables and defaults are used.
// Without any configured sites the built-in registry is used.
func NewConfig(path string) (*Config, error) {
	var config Config

	_, err := os.Stat(path)
	switch {
	case err == nil:
		if err := cleanenv.ReadConfig(path, &config); err != nil {
			return nil, fmt.Errorf("error while reading config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		if err := cleanenv.ReadEnv(&config); err != nil {
			return nil, fmt.Errorf("error while reading environment: %w", err)
		}
	default:
		return nil, err
	}

	if config.SitesPath != "" {
		extra, err := site.Load(config.SitesPath)
		if err != nil {
			return nil, fmt.Errorf("error while loading sites from %s: %w", config.SitesPath, err)
		}
		config.Sites = append(config.Sites, extra...)
	}
	if len(config.Sites) == 0 {
		config.Sites, err = site.Default()
		if err != nil {
			return nil, err
		}
	}
	if err := site.Validate(config.Sites); err != nil {
		return nil, err
	}
	return &config, nil
}
