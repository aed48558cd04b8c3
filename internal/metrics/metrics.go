// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	EndpointTestsTotal  = expvar.NewInt("endpoint_tests_total")
	EndpointTestsFailed = expvar.NewInt("endpoint_tests_failed")
	ProbeErrors         = expvar.NewInt("probe_errors")
	FlowScansTotal      = expvar.NewInt("flow_scans_total")
	FlowScansFailed     = expvar.NewInt("flow_scans_failed")
	AlertsDispatched    = expvar.NewInt("alerts_dispatched")
	AlertsFailed        = expvar.NewInt("alerts_failed")
	WatcherCycles       = expvar.NewInt("watcher_cycles")
	ReportsWritten      = expvar.NewInt("reports_written")
)
