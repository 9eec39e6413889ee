// Package dashboards assembles Grafana dashboard definitions from panel builders.
package dashboards

import (
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"

	"github.com/tlundberg/wishwatch/tools/dashgen/panels"
)

// BuildOverview constructs the Wishwatch Overview dashboard with all metric rows.
func BuildOverview() *dashboard.DashboardBuilder {
	b := dashboard.NewDashboardBuilder("Wishwatch Overview").
		Uid("wishwatch-overview").
		Tags([]string{"wishwatch"}).
		Refresh("30s").
		Time("now-6h", "now").
		Timezone("browser").
		Editable().
		Tooltip(dashboard.DashboardCursorSyncCrosshair).
		WithVariable(datasourceVar())

	// Row 1: Overview.
	b.WithRow(dashboard.NewRowBuilder("Overview").
		WithPanel(panels.HealthzStat()).
		WithPanel(panels.ReadyzStat()).
		WithPanel(panels.DegradedStat()).
		WithPanel(panels.UptimeStat()))

	// Row 2: HTTP.
	b.WithRow(dashboard.NewRowBuilder("HTTP").
		WithPanel(panels.RequestRate()).
		WithPanel(panels.LatencyPercentiles()).
		WithPanel(panels.ErrorRate()))

	// Row 3: Polling.
	b.WithRow(dashboard.NewRowBuilder("Polling").
		WithPanel(panels.CycleRate()).
		WithPanel(panels.CycleDuration()).
		WithPanel(panels.FetchFailures()).
		WithPanel(panels.DiscardedResults()))

	// Row 4: Change Detection.
	b.WithRow(dashboard.NewRowBuilder("Change Detection").
		WithPanel(panels.ChangeEvents()).
		WithPanel(panels.DataInconsistencies()))

	// Row 5: Alerts.
	b.WithRow(dashboard.NewRowBuilder("Alerts").
		WithPanel(panels.AlertsCreated()).
		WithPanel(panels.AlertsSuppressed()).
		WithPanel(panels.SinkFailures()).
		WithPanel(panels.AlertsDropped()))

	return b
}

func datasourceVar() *dashboard.DatasourceVariableBuilder {
	return dashboard.NewDatasourceVariableBuilder("datasource").
		Label("Datasource").
		Type("prometheus")
}
