package config

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/davecgh/go-spew/spew"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// EnvPrefix prefixes every environment override, e.g. PANO_INTERVAL.
const EnvPrefix = "PANO_"

var (
	gLock   sync.RWMutex
	gConfig *Config
)

// Parse builds a Config from the defaults, the JSON file at path (if path is
// not empty) and then the environment.
func Parse(path string) (*Config, error) {
	config := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(config); err != nil {
			return nil, err
		}
	}
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, err
	}
	return config, nil
}

func configFromFile(path string, apply func(*Config)) (*Config, error) {
	config, err := Parse(path)
	if err != nil {
		return nil, err
	}
	if apply != nil {
		apply(config)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	log.Debugf("Loaded configuration: %v", spew.Sdump(config))
	return config, nil
}

// Get returns the current configuration. Only valid after Load or Set.
func Get() *Config {
	gLock.RLock()
	defer gLock.RUnlock()
	return gConfig
}

// Set replaces the current configuration.
func Set(c *Config) {
	gLock.Lock()
	defer gLock.Unlock()
	gConfig = c
}

func waitForChange(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-watcher.Events:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Second / 10):
	}
	return ctx.Err()
}

// Load reads the configuration at path and keeps reloading it whenever the
// file changes until ctx is done. apply is run on every loaded config before
// it is validated and published (flag overrides, for example); it may be nil.
func Load(ctx context.Context, path string, apply func(*Config)) error {
	config, err := configFromFile(path, apply)
	if err != nil {
		return err
	}
	Set(config)
	go func() {
		for ctx.Err() == nil {
			if err := waitForChange(ctx, path); err != nil {
				if ctx.Err() == nil {
					log.Errorf("Error waiting for file change: %v", err)
					time.Sleep(time.Second)
				}
				continue
			}

			config, err := configFromFile(path, apply)
			if err != nil {
				log.Errorf("Failed to load new config: %v", err)
				continue
			}
			Set(config)
			log.Infof("Configuration reloaded from %v", path)
		}
	}()
	return nil
}
