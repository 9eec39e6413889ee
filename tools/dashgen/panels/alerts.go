package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// AlertsCreated returns a timeseries panel showing the rate of alerts
// created by kind.
func AlertsCreated() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Alerts Created").
		Description("Alerts created per second by kind").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(TSWidth).
		WithTarget(PromQuery(`wishwatch:alerts_created:rate5m`, "alerts/s", "A")).
		FillOpacity(10).
		LineWidth(2).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// AlertsSuppressed returns a timeseries panel comparing cooldown
// suppressions and coalesced price alerts.
func AlertsSuppressed() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Suppressed & Coalesced").
		Description("Alerts absorbed by the cool-down window or folded into a pending alert").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(TSWidth).
		WithTarget(PromQuery(
			`rate(wishwatch_alerts_suppressed_total{job="wishwatch"}[5m])`,
			"suppressed", "A",
		)).
		WithTarget(PromQuery(
			`rate(wishwatch_alerts_coalesced_total{job="wishwatch"}[5m])`,
			"coalesced", "B",
		)).
		FillOpacity(10).
		LineWidth(2).
		Legend(TableLegend("mean", "max")).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// SinkFailures returns a stat panel showing alert delivery failures in the
// past 24 hours.
func SinkFailures() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Sink Failures (24h)").
		Description("Failed alert sink deliveries in the last 24 hours").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(TSWidth).
		WithTarget(PromQuery(`increase(wishwatch_sink_failures_total{job="wishwatch"}[24h])`, "", "A")).
		Thresholds(ThresholdsGreenYellowRed(1, 5)).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeArea)
}

// AlertsDropped returns a stat panel showing alert deliveries dropped due
// to queue backpressure.
func AlertsDropped() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Dropped Deliveries (24h)").
		Description("Alert deliveries dropped because the sink queue was full").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(TSWidth).
		WithTarget(PromQuery(`increase(wishwatch_alerts_dropped_total{job="wishwatch"}[24h])`, "", "A")).
		Thresholds(ThresholdsGreenYellowRed(1, 10)).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeArea)
}
