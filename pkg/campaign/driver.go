/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package campaign implements the outer fuzzing loop: bootstrap the
// breakpoint table once, then repeatedly mutate the seed corpus, run the
// target under the coverage engine, and record any crash, until the
// configured run budget is exhausted or the context is canceled.
package campaign

import (
	"context"
	"os"
	"time"

	"github.com/containerd/log"
	"github.com/pkg/errors"

	"github.com/nydus-tracefuzz/tracefuzz/pkg/breakpoint"
	"github.com/nydus-tracefuzz/tracefuzz/pkg/corpus"
	"github.com/nydus-tracefuzz/tracefuzz/pkg/coverage"
	"github.com/nydus-tracefuzz/tracefuzz/pkg/metrics/registry"
	"github.com/nydus-tracefuzz/tracefuzz/pkg/mutator"
	"github.com/nydus-tracefuzz/tracefuzz/pkg/store"
	"github.com/nydus-tracefuzz/tracefuzz/pkg/tracee"
)

// Config bounds and locates one campaign's work.
type Config struct {
	TargetPath      string
	TargetArgs      []string
	BreakpointsFile string
	SeedPath        string
	WorkingPath     string
	Seed            uint64
	MaxRuns         uint64 // 0 means unbounded
}

// Driver owns the coverage engine, mutator, and crash corpus for one
// campaign, plus the optional database it persists progress to.
type Driver struct {
	cfg     Config
	ctrl    tracee.Controller
	arch    tracee.Arch
	engine  *coverage.Engine
	crashes *corpus.Store
	mirror  *corpus.Mirror
	db      *store.Database

	id       string
	runCount uint64
}

// Option configures a Driver at construction time.
type Option func(*Driver)

// WithDatabase attaches a Database the driver persists campaign and crash
// records to. Without it, progress is kept in memory only.
func WithDatabase(db *store.Database) Option {
	return func(d *Driver) { d.db = db }
}

// WithMirror attaches an optional S3-compatible crash corpus mirror.
func WithMirror(m *corpus.Mirror) Option {
	return func(d *Driver) { d.mirror = m }
}

// New bootstraps the breakpoint table against a dry-run spawn of the
// target and returns a ready-to-drive Driver.
func New(ctx context.Context, cfg Config, ctrl tracee.Controller, crashDir string, opts ...Option) (*Driver, error) {
	f, err := os.Open(cfg.BreakpointsFile)
	if err != nil {
		return nil, errors.Wrapf(err, "open breakpoints file %s", cfg.BreakpointsFile)
	}
	records, err := breakpoint.ParseFile(f)
	_ = f.Close()
	if err != nil {
		return nil, errors.Wrap(err, "parse breakpoints file")
	}

	argv := append([]string{cfg.TargetPath}, cfg.TargetArgs...)

	table, err := breakpoint.Bootstrap(ctrl, argv, records)
	if err != nil {
		return nil, errors.Wrap(err, "bootstrap breakpoint table")
	}

	crashes, err := corpus.NewStore(crashDir)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		cfg:     cfg,
		ctrl:    ctrl,
		arch:    tracee.AMD64,
		engine:  coverage.NewEngine(ctrl, table, tracee.AMD64),
		crashes: crashes,
		id:      newID(),
	}
	for _, o := range opts {
		o(d)
	}

	if d.db != nil {
		rec := &store.CampaignRecord{
			ID:        d.id,
			Target:    cfg.TargetPath,
			NextSeed:  cfg.Seed,
			StartedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := d.db.SaveCampaign(ctx, rec); err != nil {
			return nil, errors.Wrap(err, "save initial campaign record")
		}
	}

	log.G(ctx).WithField("campaign", d.id).Infof("Bootstrapped %d breakpoints for %s", table.TotalOriginal, cfg.TargetPath)

	return d, nil
}

// ID returns the campaign's generated identifier.
func (d *Driver) ID() string { return d.id }

// Counters exposes the live coverage counters, for wiring into a metrics
// server.
func (d *Driver) Counters() *coverage.Counters { return d.engine.Counters }

// RunCount returns the number of attach_and_run invocations completed so
// far.
func (d *Driver) RunCount() uint64 { return d.runCount }

// Run drives the mutate/run loop until MaxRuns is reached (if non-zero) or
// ctx is canceled. It returns nil on a clean stop and a non-nil error only
// for a campaign-fatal failure (bootstrap errors are returned by New, not
// here).
func (d *Driver) Run(ctx context.Context) error {
	seed, err := os.ReadFile(d.cfg.SeedPath)
	if err != nil {
		return errors.Wrapf(err, "read seed corpus %s", d.cfg.SeedPath)
	}

	image := append([]byte(nil), seed...)
	mut := mutator.New(image, d.cfg.Seed)

	for {
		if d.cfg.MaxRuns != 0 && d.runCount >= d.cfg.MaxRuns {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := os.WriteFile(d.cfg.WorkingPath, mut.Image(), 0644); err != nil {
			return errors.Wrapf(err, "write mutated corpus to %s", d.cfg.WorkingPath)
		}

		argv := append([]string{d.cfg.TargetPath, d.cfg.WorkingPath}, d.cfg.TargetArgs...)

		started := time.Now()
		out, err := d.engine.AttachAndRun(ctx, argv)
		registry.RunDuration.Observe(time.Since(started).Seconds())
		if err != nil {
			return errors.Wrap(err, "campaign-fatal error during attach_and_run")
		}

		d.runCount++
		registry.RunsTotal.Inc()
		hit, _, percent := d.engine.Counters.Snapshot()
		registry.CoverageHitTotal.Set(float64(hit))
		registry.CoveragePercent.Set(percent)

		// A crash, in the fuzzing sense, is any run that did not exit
		// cleanly with status zero: a signal death, a stop-on-signal
		// (ended by the engine's own kill), or a non-zero exit code.
		crashed := out.Ended.Kind == tracee.Killed ||
			out.Ended.Kind == tracee.StopSignal ||
			(out.Ended.Kind == tracee.Exited && out.Ended.ExitCode != 0)

		if crashed {
			registry.CrashesTotal.Inc()
			if err := d.recordCrash(ctx, mut.Image(), out.Ended.Signal); err != nil {
				log.G(ctx).WithError(err).Error("failed to record crash")
			}
		}

		if d.db != nil {
			rec := &store.CampaignRecord{
				ID:        d.id,
				Target:    d.cfg.TargetPath,
				RunCount:  d.runCount,
				NextSeed:  d.cfg.Seed,
				UpdatedAt: time.Now(),
			}
			if prev, err := d.db.GetCampaign(ctx, d.id); err == nil {
				rec.StartedAt = prev.StartedAt
			}
			if err := d.db.UpdateCampaign(ctx, rec); err != nil {
				log.G(ctx).WithError(err).Warn("failed to persist campaign progress")
			}
		}

		mut.Mutate()
	}
}

func (d *Driver) recordCrash(ctx context.Context, image []byte, signal int) error {
	digest, path, err := d.crashes.Save(image)
	if err != nil {
		return errors.Wrap(err, "save crash corpus entry")
	}
	log.G(ctx).WithField("digest", digest).Infof("Recorded crash at %s", path)

	if d.mirror != nil {
		if err := d.mirror.Upload(ctx, digest, image); err != nil {
			log.G(ctx).WithError(err).Warn("failed to mirror crash corpus entry")
		}
	}

	if d.db != nil {
		rec := &store.CrashRecord{
			ID:         newID(),
			CampaignID: d.id,
			RunIndex:   d.runCount,
			Digest:     digest.String(),
			Signal:     signal,
			RecordedAt: time.Now(),
		}
		if err := d.db.AddCrash(ctx, rec); err != nil {
			return errors.Wrap(err, "persist crash record")
		}
	}

	return nil
}
