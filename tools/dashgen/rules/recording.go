package rules

// RecordingRules returns a PrometheusRule CR containing pre-computed rate
// expressions used by dashboards and alert rules.
func RecordingRules() PrometheusRule {
	return PrometheusRule{
		APIVersion: "monitoring.coreos.com/v1",
		Kind:       "PrometheusRule",
		Metadata: PrometheusRuleMetadata{
			Name: "wishwatch-recording-rules",
			Labels: map[string]string{
				"prometheus": "system-rules-prometheus",
			},
		},
		Spec: PrometheusRuleSpec{
			Groups: []RuleGroup{
				{
					Name: "wishwatch-recording",
					Rules: []Rule{
						{
							Record: "wishwatch:http_requests:rate5m",
							Expr:   `sum(rate(wishwatch_http_requests_total[5m]))`,
						},
						{
							Record: "wishwatch:http_errors:rate5m",
							Expr:   `sum(rate(wishwatch_http_requests_total{status=~"5.."}[5m]))`,
						},
						{
							Record: "wishwatch:poll_cycles:rate5m",
							Expr:   `rate(wishwatch_poll_cycles_total[5m])`,
						},
						{
							Record: "wishwatch:fetch_failures:rate5m",
							Expr:   `sum(rate(wishwatch_fetch_failures_total[5m]))`,
						},
						{
							Record: "wishwatch:change_events:rate5m",
							Expr:   `sum(rate(wishwatch_change_events_total[5m]))`,
						},
						{
							Record: "wishwatch:alerts_created:rate5m",
							Expr:   `sum(rate(wishwatch_alerts_created_total[5m]))`,
						},
					},
				},
			},
		},
	}
}
