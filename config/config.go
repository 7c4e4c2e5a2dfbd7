package config

import (
	"errors"
	"fmt"

	"pano/pano"
	"pano/stitch"
)

type Config struct {
	// Input is the video to stitch in one-shot mode.
	Input string `env:"INPUT"`
	// Output is the panorama path in one-shot mode.
	Output string `env:"OUTPUT"`
	// Interval is the number of frames between two samples.
	Interval int `env:"INTERVAL"`
	// MinFrames is the fewest samples worth stitching (at least 2).
	MinFrames int `env:"MIN_FRAMES"`
	// Mode is the stitcher camera model, "panorama" or "scans".
	Mode string `env:"MODE"`

	// WatchDir, if set, runs the daemon watching this directory for videos.
	WatchDir string `env:"WATCH_DIR"`
	// LibraryPath holds panoramas and thumbnails produced by the daemon.
	LibraryPath string `env:"LIBRARY_PATH"`
	// OutputExt is the image format used by the daemon.
	OutputExt string `env:"OUTPUT_EXT"`
	Port      int    `env:"PORT"`

	// DatabaseDriver is "sqlite" or "mysql". Records are kept only in daemon
	// mode or when DatabaseDSN is set.
	DatabaseDriver string `env:"DATABASE_DRIVER"`
	DatabaseDSN    string `env:"DATABASE_DSN"`

	// Pushgateway receives metrics at the end of a one-shot run, if set.
	Pushgateway string `env:"PUSHGATEWAY"`

	Upload UploadConfig `envPrefix:"UPLOAD_"`

	// Subscriber is the contact sent to web push services.
	PushSubscriber string `env:"PUSH_SUBSCRIBER"`
}

type UploadConfig struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET"`
	UseSSL    bool   `env:"USE_SSL"`
}

// Enabled reports whether uploads are configured.
func (u UploadConfig) Enabled() bool {
	return u.Endpoint != "" && u.Bucket != ""
}

// Default returns the configuration used when no file or environment sets a
// value.
func Default() *Config {
	return &Config{
		Input:          pano.DefaultInput,
		Output:         pano.DefaultOutput,
		Interval:       pano.DefaultInterval,
		MinFrames:      pano.DefaultMinFrames,
		Mode:           stitch.ModePanorama.String(),
		LibraryPath:    "/tmp/pano/",
		OutputExt:      ".jpg",
		Port:           8080,
		DatabaseDriver: "sqlite",
		DatabaseDSN:    "",
		PushSubscriber: "pano@localhost",
	}
}

func (c *Config) Validate() error {
	if c.Interval < 1 {
		return fmt.Errorf("interval must be at least 1, got %d", c.Interval)
	}
	if c.MinFrames < 2 {
		return fmt.Errorf("min frames must be at least 2, got %d", c.MinFrames)
	}
	if _, err := stitch.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.WatchDir != "" && c.LibraryPath == "" {
		return errors.New("library path is required in watch mode")
	}
	switch c.DatabaseDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unknown database driver %q", c.DatabaseDriver)
	}
	return nil
}

// StitchMode returns the parsed Mode; call Validate first.
func (c *Config) StitchMode() stitch.Mode {
	m, _ := stitch.ParseMode(c.Mode)
	return m
}

// Options returns the one-shot run options described by c.
func (c *Config) Options() pano.Options {
	return pano.Options{
		Input:     c.Input,
		Output:    c.Output,
		Interval:  c.Interval,
		MinFrames: c.MinFrames,
	}
}
