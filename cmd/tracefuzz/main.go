/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/nydus-tracefuzz/tracefuzz/cmd/tracefuzz/command"
	"github.com/nydus-tracefuzz/tracefuzz/internal/config"
	"github.com/nydus-tracefuzz/tracefuzz/internal/logging"
	"github.com/nydus-tracefuzz/tracefuzz/pkg/campaign"
	"github.com/nydus-tracefuzz/tracefuzz/pkg/corpus"
	"github.com/nydus-tracefuzz/tracefuzz/pkg/metrics"
	"github.com/nydus-tracefuzz/tracefuzz/pkg/store"
	"github.com/nydus-tracefuzz/tracefuzz/pkg/tracee"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	flags := command.NewFlags()
	app := &cli.App{
		Name:        "tracefuzz",
		Usage:       "coverage-guided mutational fuzzer for native binaries",
		Version:     Version,
		Flags:       flags.F,
		HideVersion: true,
		ArgsUsage:   "<target> [target-args...]",
		Action: func(c *cli.Context) error {
			if flags.Args.PrintVersion {
				fmt.Println("Version:", Version)
				return nil
			}
			return run(c, flags.Args)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.L.WithError(err).Fatal("tracefuzz exited with error")
	}
}

func run(c *cli.Context, args *command.Args) error {
	positional := c.Args().Slice()
	if len(positional) == 0 {
		return errors.New("a target executable path is required")
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}
	cfg.Target.Path = positional[0]
	cfg.Target.Args = positional[1:]
	if err := cfg.Validate(); err != nil {
		return err
	}

	logRotateArgs := &logging.RotateLogArgs{
		RotateLogMaxSize:    cfg.Log.RotateLogMaxSize,
		RotateLogMaxBackups: cfg.Log.RotateLogMaxBackups,
		RotateLogMaxAge:     cfg.Log.RotateLogMaxAge,
		RotateLogLocalTime:  cfg.Log.RotateLogLocalTime,
		RotateLogCompress:   cfg.Log.RotateLogCompress,
	}
	if err := logging.SetUp(cfg.Log.Level, cfg.Log.Stdout, cfg.Log.Dir, logRotateArgs); err != nil {
		return errors.Wrap(err, "failed to set up logger")
	}

	ctx := logging.WithContext()
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.G(ctx).Infof("Starting tracefuzz. PID %d Version %s", os.Getpid(), Version)

	ctrl := tracee.NewController()

	var opts []campaign.Option

	var db *store.Database
	if cfg.Campaign.PersistState {
		db, err = store.NewDatabase(cfg.RootDir)
		if err != nil {
			return errors.Wrap(err, "open campaign database")
		}
		defer db.Close()
		opts = append(opts, campaign.WithDatabase(db))
	}

	if cfg.Corpus.Mirror != nil {
		mirror, err := corpus.NewMirror(corpus.MirrorConfig{
			AccessKeyID:          cfg.Corpus.Mirror.AccessKeyID,
			AccessKeySecret:      cfg.Corpus.Mirror.AccessKeySecret,
			Endpoint:             cfg.Corpus.Mirror.Endpoint,
			Scheme:               cfg.Corpus.Mirror.Scheme,
			BucketName:           cfg.Corpus.Mirror.BucketName,
			Region:               cfg.Corpus.Mirror.Region,
			ObjectPrefix:         cfg.Corpus.Mirror.ObjectPrefix,
			MaxConcurrentUploads: cfg.Corpus.Mirror.MaxConcurrentUploads,
		})
		if err != nil {
			return errors.Wrap(err, "configure crash corpus mirror")
		}
		opts = append(opts, campaign.WithMirror(mirror))
	}

	driverCfg := campaign.Config{
		TargetPath:      cfg.Target.Path,
		TargetArgs:      cfg.Target.Args,
		BreakpointsFile: cfg.Target.BreakpointsFile,
		SeedPath:        cfg.Corpus.SeedPath,
		WorkingPath:     cfg.Corpus.WorkingPath,
		Seed:            cfg.Campaign.Seed,
		MaxRuns:         cfg.Campaign.MaxRuns,
	}

	driver, err := campaign.New(ctx, driverCfg, ctrl, cfg.Corpus.CrashDir, opts...)
	if err != nil {
		return errors.Wrap(err, "start campaign")
	}

	if cfg.Metrics.Enable {
		srv, err := metrics.NewServer(
			metrics.WithListenAddr(cfg.Metrics.ListenAddr),
			metrics.WithCounters(driver.Counters()),
			metrics.WithRunsCounter(driver.RunCount),
		)
		if err != nil {
			return errors.Wrap(err, "configure metrics server")
		}
		go func() {
			if err := srv.Serve(ctx); err != nil {
				log.G(ctx).WithError(err).Error("metrics server stopped")
			}
		}()
	}

	return driver.Run(ctx)
}

func loadConfig(args *command.Args) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if args.ConfigPath != "" {
		cfg, err = config.LoadFile(args.ConfigPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	cfg.RootDir = args.RootDir
	cfg.Target.BreakpointsFile = args.BreakpointsFile
	cfg.Corpus.SeedPath = args.SeedPath
	cfg.Corpus.WorkingPath = args.WorkingPath
	cfg.Corpus.CrashDir = args.CrashDir
	cfg.Campaign.Seed = args.CampaignSeed
	cfg.Campaign.MaxRuns = args.MaxRuns
	cfg.Campaign.DryRunTimeout = args.DryRunTimeout
	cfg.Campaign.PersistState = args.PersistState
	cfg.Log.Level = args.LogLevel
	cfg.Log.Dir = args.LogDir
	cfg.Log.Stdout = args.LogToStdout
	cfg.Metrics.Enable = args.EnableMetrics
	cfg.Metrics.ListenAddr = args.MetricsAddr

	if args.MirrorBucket != "" {
		cfg.Corpus.Mirror = &config.MirrorConfig{
			BucketName: args.MirrorBucket,
			Region:     args.MirrorRegion,
		}
	}

	return cfg, nil
}
