package main

import "errors"

// KnownMetrics is the set of metric names exported by wishwatch plus
// recording rule names referenced in dashboards and alerts.
var KnownMetrics = map[string]bool{
	// HTTP metrics.
	"wishwatch_http_request_duration_seconds": true,
	"wishwatch_http_requests_total":           true,

	// Health metrics.
	"wishwatch_healthz_up": true,
	"wishwatch_readyz_up":  true,

	// Poll cycle metrics.
	"wishwatch_poll_cycles_total":           true,
	"wishwatch_poll_cycle_duration_seconds": true,
	"wishwatch_fetch_failures_total":        true,
	"wishwatch_degraded_products":           true,
	"wishwatch_discarded_results_total":     true,

	// Detection metrics.
	"wishwatch_change_events_total":        true,
	"wishwatch_data_inconsistencies_total": true,

	// Alert metrics.
	"wishwatch_alerts_created_total":    true,
	"wishwatch_alerts_suppressed_total": true,
	"wishwatch_alerts_coalesced_total":  true,
	"wishwatch_alerts_dropped_total":    true,
	"wishwatch_sink_failures_total":     true,

	// History metrics.
	"wishwatch_history_points_compacted_total": true,

	// Recording rules.
	"wishwatch:http_requests:rate5m":  true,
	"wishwatch:http_errors:rate5m":    true,
	"wishwatch:poll_cycles:rate5m":    true,
	"wishwatch:fetch_failures:rate5m": true,
	"wishwatch:change_events:rate5m":  true,
	"wishwatch:alerts_created:rate5m": true,

	// Standard Prometheus metrics referenced in dashboards.
	"up":                         true,
	"process_start_time_seconds": true,
}

// Config controls which artifacts the generator produces and where they go.
type Config struct {
	OutputDir        string
	DashboardEnabled bool
	RulesEnabled     bool
}

// DefaultConfig returns a Config that generates all artifacts into ../../deploy
// (relative to tools/dashgen/).
func DefaultConfig() Config {
	return Config{
		OutputDir:        "../../deploy",
		DashboardEnabled: true,
		RulesEnabled:     true,
	}
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output directory must be set")
	}
	if !c.DashboardEnabled && !c.RulesEnabled {
		return errors.New("at least one of dashboard or rules must be enabled")
	}
	return nil
}
