/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package config defines the on-disk TOML configuration for a fuzzing
// campaign: the target to trace, the breakpoint file, corpus paths, and
// the ambient logging/metrics/persistence settings. Command-line flags
// populate the same struct and take precedence over a loaded file.
package config

import (
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Config is the full set of settings for one tracefuzz invocation.
type Config struct {
	Version  string         `toml:"version"`
	RootDir  string         `toml:"root_dir"`
	Target   TargetConfig   `toml:"target"`
	Corpus   CorpusConfig   `toml:"corpus"`
	Campaign CampaignConfig `toml:"campaign"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// TargetConfig names the program under test and the breakpoint file that
// instruments it.
type TargetConfig struct {
	Path            string   `toml:"path"`
	Args            []string `toml:"args"`
	BreakpointsFile string   `toml:"breakpoints_file"`
}

// CorpusConfig locates the seed input, the mutated-input working file the
// target is invoked against, and the directory crashing inputs are saved
// under.
type CorpusConfig struct {
	SeedPath    string        `toml:"seed_path"`
	WorkingPath string        `toml:"working_path"`
	CrashDir    string        `toml:"crash_dir"`
	Mirror      *MirrorConfig `toml:"mirror"`
}

// MirrorConfig is the optional S3-compatible fleet-sharing bucket for the
// crash corpus; nil disables mirroring.
type MirrorConfig struct {
	AccessKeyID          string `toml:"access_key_id"`
	AccessKeySecret      string `toml:"access_key_secret"`
	Endpoint             string `toml:"endpoint"`
	Scheme               string `toml:"scheme"`
	BucketName           string `toml:"bucket_name"`
	Region               string `toml:"region"`
	ObjectPrefix         string `toml:"object_prefix"`
	MaxConcurrentUploads int64  `toml:"max_concurrent_uploads"`
}

// CampaignConfig bounds how long and how the outer mutate/run loop runs.
type CampaignConfig struct {
	Seed          uint64        `toml:"seed"`
	MaxRuns       uint64        `toml:"max_runs"` // 0 means unbounded
	DryRunTimeout time.Duration `toml:"dry_run_timeout"`
	PersistState  bool          `toml:"persist_state"`
}

// LogConfig controls the destination and verbosity of log output.
type LogConfig struct {
	Dir                 string `toml:"dir"`
	Level               string `toml:"level"`
	Stdout              bool   `toml:"stdout"`
	RotateLogCompress   bool   `toml:"rotate_compress"`
	RotateLogLocalTime  bool   `toml:"rotate_local_time"`
	RotateLogMaxAge     int    `toml:"rotate_max_age"`
	RotateLogMaxBackups int    `toml:"rotate_max_backups"`
	RotateLogMaxSize    int    `toml:"rotate_max_size"`
}

// MetricsConfig controls the optional coverage/status HTTP server.
type MetricsConfig struct {
	Enable     bool   `toml:"enable"`
	ListenAddr string `toml:"listen_addr"`
}

// LoadFile parses a TOML configuration file at path.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load config file %s", path)
	}
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config file %s", path)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a Config populated with defaults and no target set; flags
// or a loaded file must still fill in Target and Corpus before use.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Log.RotateLogMaxSize == 0 {
		c.Log.RotateLogMaxSize = defaultRotateLogMaxSize
	}
	if c.Log.RotateLogMaxBackups == 0 {
		c.Log.RotateLogMaxBackups = defaultRotateLogMaxBackups
	}
	if !c.Log.RotateLogCompress {
		c.Log.RotateLogCompress = defaultRotateLogCompress
	}
	if !c.Log.RotateLogLocalTime {
		c.Log.RotateLogLocalTime = defaultRotateLogLocalTime
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = defaultMetricsListenAddr
	}
	if c.Campaign.DryRunTimeout == 0 {
		d, _ := time.ParseDuration(defaultDryRunTimeout)
		c.Campaign.DryRunTimeout = d
	}
	if c.Corpus.WorkingPath == "" {
		c.Corpus.WorkingPath = "input_corpus.jpg"
	}
	if c.Corpus.CrashDir == "" {
		c.Corpus.CrashDir = "crash_dumps"
	}
}

// Validate reports the first missing required field.
func (c *Config) Validate() error {
	if c.Target.Path == "" {
		return errors.New("config: target.path is required")
	}
	if c.Target.BreakpointsFile == "" {
		return errors.New("config: target.breakpoints_file is required")
	}
	if c.Corpus.SeedPath == "" {
		return errors.New("config: corpus.seed_path is required")
	}
	if c.Campaign.Seed == 0 {
		return errors.New("config: campaign.seed must be non-zero")
	}
	return nil
}
