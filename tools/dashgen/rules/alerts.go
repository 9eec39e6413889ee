package rules

// AlertRules returns a PrometheusRule CR containing alert rules for
// wishwatch operational monitoring.
func AlertRules() PrometheusRule {
	return PrometheusRule{
		APIVersion: "monitoring.coreos.com/v1",
		Kind:       "PrometheusRule",
		Metadata: PrometheusRuleMetadata{
			Name: "wishwatch-alerts",
			Labels: map[string]string{
				"prometheus": "system-rules-prometheus",
			},
		},
		Spec: PrometheusRuleSpec{
			Groups: []RuleGroup{
				{
					Name: "wishwatch-alerts",
					Rules: []Rule{
						{
							Alert: "WishwatchDown",
							Expr:  `absent(up{job="wishwatch"})`,
							For:   "2m",
							Labels: map[string]string{
								"severity": "critical",
							},
							Annotations: map[string]string{
								"summary":     "Wishwatch is down",
								"description": "The wishwatch job has been absent for more than 2 minutes.",
							},
						},
						{
							Alert: "WishwatchReadinessDown",
							Expr:  `wishwatch_readyz_up == 0`,
							For:   "2m",
							Labels: map[string]string{
								"severity": "critical",
							},
							Annotations: map[string]string{
								"summary":     "Wishwatch readiness check is failing",
								"description": "The readiness probe has been reporting not-ready for more than 2 minutes.",
							},
						},
						{
							Alert: "WishwatchHighErrorRate",
							Expr:  `wishwatch:http_errors:rate5m / wishwatch:http_requests:rate5m > 0.05`,
							For:   "5m",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "High HTTP error rate on wishwatch",
								"description": "More than 5% of HTTP requests are returning 5xx errors over the last 5 minutes.",
							},
						},
						{
							Alert: "WishwatchFetchFailures",
							Expr:  `wishwatch:fetch_failures:rate5m > 0.5`,
							For:   "10m",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "Snapshot fetch failure rate is elevated",
								"description": "Fetches have been failing at more than 0.5/s for the last 10 minutes.",
							},
						},
						{
							Alert: "WishwatchDegradedProducts",
							Expr:  `wishwatch_degraded_products > 0`,
							For:   "15m",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "Tracked products are stuck in degraded state",
								"description": "One or more products have exceeded the consecutive fetch failure threshold for 15 minutes.",
							},
						},
						{
							Alert: "WishwatchSinkFailures",
							Expr:  `increase(wishwatch_sink_failures_total[5m]) > 0`,
							For:   "1m",
							Labels: map[string]string{
								"severity": "warning",
							},
							Annotations: map[string]string{
								"summary":     "Alert delivery failures detected",
								"description": "One or more alert sink deliveries (webhooks) have failed to send.",
							},
						},
						{
							Alert: "WishwatchAlertsDropped",
							Expr:  `increase(wishwatch_alerts_dropped_total[5m]) > 0`,
							For:   "0m",
							Labels: map[string]string{
								"severity": "critical",
							},
							Annotations: map[string]string{
								"summary":     "Alert deliveries are being dropped",
								"description": "The sink delivery queue is overflowing. Alerts stay persisted but notifications are lost.",
							},
						},
					},
				},
			},
		},
	}
}
