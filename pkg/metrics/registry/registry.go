/*
 * Copyright (c) 2021. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package registry holds the process-wide Prometheus registry and the
// coverage/campaign metric families tracefuzz exposes through it.
package registry

import "github.com/prometheus/client_golang/prometheus"

var (
	// CoverageHitTotal is the cumulative number of breakpoints consumed
	// across the whole campaign.
	CoverageHitTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tracefuzz",
		Subsystem: "coverage",
		Name:      "hit_total",
		Help:      "Cumulative number of breakpoints consumed in this campaign.",
	})

	// CoveragePercent is 100*hit/total_original.
	CoveragePercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tracefuzz",
		Subsystem: "coverage",
		Name:      "percent",
		Help:      "Percentage of the original breakpoint set consumed so far.",
	})

	// RunsTotal is the number of attach_and_run invocations completed.
	RunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tracefuzz",
		Subsystem: "campaign",
		Name:      "runs_total",
		Help:      "Number of attach-and-run invocations completed.",
	})

	// CrashesTotal is the number of runs that did not exit cleanly with
	// status zero: a signal death, a stop on a non-trap signal, or a
	// non-zero exit code.
	CrashesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tracefuzz",
		Subsystem: "campaign",
		Name:      "crashes_total",
		Help:      "Number of runs that ended by a signal or with a non-zero exit code.",
	})

	// RunDuration measures wall-clock time of one attach_and_run call.
	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tracefuzz",
		Subsystem: "campaign",
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of one attach-and-run invocation.",
		Buckets:   prometheus.DefBuckets,
	})

	// Registry is the process-wide Prometheus registry served by the
	// metrics HTTP listener.
	Registry = prometheus.NewRegistry()
)

func init() {
	Registry.MustRegister(
		CoverageHitTotal,
		CoveragePercent,
		RunsTotal,
		CrashesTotal,
		RunDuration,
	)
}
