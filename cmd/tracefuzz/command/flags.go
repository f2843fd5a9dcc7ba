/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package command defines tracefuzz's command-line surface: the target,
// breakpoint file, seed corpus, and the ambient logging/metrics/campaign
// settings that can also be supplied through a TOML config file.
package command

import (
	"time"

	"github.com/urfave/cli/v2"
)

// Args holds every flag value; a *cli.App populates it directly through
// each flag's Destination.
type Args struct {
	BreakpointsFile string
	SeedPath        string
	WorkingPath     string
	CrashDir        string
	RootDir         string
	ConfigPath      string
	CampaignSeed    uint64
	MaxRuns         uint64
	DryRunTimeout   time.Duration
	PersistState    bool
	LogLevel        string
	LogDir          string
	LogToStdout     bool
	EnableMetrics   bool
	MetricsAddr     string
	MirrorBucket    string
	MirrorRegion    string
	PrintVersion    bool
}

// Flags bundles the parsed Args with the urfave/cli flag definitions that
// populate it.
type Flags struct {
	Args *Args
	F    []cli.Flag
}

func buildFlags(args *Args) []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "version",
			Usage:       "print version and build information",
			Destination: &args.PrintVersion,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "load campaign configuration from the specified TOML `FILE`",
			Destination: &args.ConfigPath,
		},
		&cli.StringFlag{
			Name:        "breakpoints",
			Aliases:     []string{"b"},
			Value:       "breakpoints.txt",
			Usage:       "`FILE` listing one address and label per line to instrument",
			Destination: &args.BreakpointsFile,
		},
		&cli.StringFlag{
			Name:        "seed",
			Aliases:     []string{"s"},
			Value:       "corpus.jpg",
			Usage:       "`FILE` to read the initial corpus image from",
			Destination: &args.SeedPath,
		},
		&cli.StringFlag{
			Name:        "working",
			Value:       "input_corpus.jpg",
			Usage:       "`FILE` the mutated corpus is written to before each run",
			Destination: &args.WorkingPath,
		},
		&cli.StringFlag{
			Name:        "crash-dir",
			Value:       "crash_dumps",
			Usage:       "`DIRECTORY` crashing inputs are saved under",
			Destination: &args.CrashDir,
		},
		&cli.StringFlag{
			Name:        "root",
			Value:       "tracefuzz-state",
			Aliases:     []string{"R"},
			Usage:       "set `DIRECTORY` to store campaign and crash persistence",
			Destination: &args.RootDir,
		},
		&cli.Uint64Flag{
			Name:        "campaign-seed",
			Value:       0x1337fe44,
			Usage:       "non-zero `SEED` for the deterministic mutation sequence",
			Destination: &args.CampaignSeed,
		},
		&cli.Uint64Flag{
			Name:        "max-runs",
			Usage:       "stop after `N` attach-and-run invocations, 0 for unbounded",
			Destination: &args.MaxRuns,
		},
		&cli.DurationFlag{
			Name:        "dry-run-timeout",
			Value:       30 * time.Second,
			Usage:       "time budget for the bootstrap dry run, duration string; stored in the configuration, the dry run does not enforce it",
			Destination: &args.DryRunTimeout,
		},
		&cli.BoolFlag{
			Name:        "persist-state",
			Usage:       "persist campaign and crash records in an embedded database under --root",
			Destination: &args.PersistState,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Value:       "info",
			Aliases:     []string{"l"},
			Usage:       "set the logging `LEVEL` [trace, debug, info, warn, error, fatal, panic]",
			Destination: &args.LogLevel,
		},
		&cli.StringFlag{
			Name:        "log-dir",
			Value:       "",
			Aliases:     []string{"L"},
			Usage:       "set `DIRECTORY` to store log files",
			Destination: &args.LogDir,
		},
		&cli.BoolFlag{
			Name:        "log-to-stdout",
			Value:       true,
			Usage:       "log messages to standard out rather than files",
			Destination: &args.LogToStdout,
		},
		&cli.BoolFlag{
			Name:        "enable-metrics",
			Usage:       "serve coverage metrics and status over HTTP",
			Destination: &args.EnableMetrics,
		},
		&cli.StringFlag{
			Name:        "metrics-addr",
			Value:       ":9469",
			Usage:       "`ADDRESS` the metrics HTTP server listens on",
			Destination: &args.MetricsAddr,
		},
		&cli.StringFlag{
			Name:        "mirror-bucket",
			Usage:       "S3-compatible `BUCKET` crash corpus entries are mirrored to, empty disables mirroring",
			Destination: &args.MirrorBucket,
		},
		&cli.StringFlag{
			Name:        "mirror-region",
			Usage:       "`REGION` of the crash corpus mirror bucket",
			Destination: &args.MirrorRegion,
		},
	}
}

// NewFlags returns an empty Args bound to its urfave/cli flag definitions.
func NewFlags() *Flags {
	var args Args
	return &Flags{Args: &args, F: buildFlags(&args)}
}
