/*
Package monitoring provides Prometheus metrics for the guest.

# Overview

Every guest owns a private registry. The host reads it through the
metrics export, which writes the text exposition format into the
parameter buffer.

# Metrics

- module loads by result (hit, miss, error)
- transform and compile durations
- boundary calls by op and status
- live runtime and async handles
- reactor tasks and fired timers
- script console messages by level

# Usage

	metrics := monitoring.NewMetrics()

	timer := monitoring.NewTimer(metrics, "run")
	// ... perform call ...
	timer.Stop("ok")

	text, err := metrics.Text()
*/
package monitoring
