package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// ChangeEvents returns a timeseries panel showing detected change events
// broken down by kind.
func ChangeEvents() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Change Events").
		Description("Detected change events per second by kind").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(TSWidth).
		WithTarget(PromQuery(
			`sum(rate(wishwatch_change_events_total{job="wishwatch"}[5m])) by (kind)`,
			"{{kind}}", "A",
		)).
		FillOpacity(10).
		LineWidth(2).
		Legend(TableLegend("mean", "max")).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// DataInconsistencies returns a stat panel showing snapshot pairs skipped
// for price comparison, e.g. on a currency switch.
func DataInconsistencies() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Data Inconsistencies (24h)").
		Description("Snapshot pairs skipped for price comparison in the last 24 hours").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(TSWidth).
		WithTarget(PromQuery(`increase(wishwatch_data_inconsistencies_total{job="wishwatch"}[24h])`, "", "A")).
		Thresholds(ThresholdsGreenYellowRed(1, 10)).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeArea)
}
