// Package validate checks generated PromQL expressions before they are
// written out: every expression must parse, and every metric it selects
// must be one the service actually exports.
package validate

import (
	"fmt"
	"strings"

	"github.com/prometheus/prometheus/promql/parser"
)

// Result collects validation findings. Errors are unparseable expressions;
// warnings are selectors on metrics outside the known set.
type Result struct {
	Errors   []string
	Warnings []string
}

// Ok reports whether validation found no errors.
func (r Result) Ok() bool {
	return len(r.Errors) == 0
}

// histogramSuffixes are the per-series suffixes Prometheus adds to a
// histogram metric family.
var histogramSuffixes = []string{"_bucket", "_sum", "_count"}

// Queries validates a list of PromQL expressions against the known metric
// names.
func Queries(exprs []string, known map[string]bool) Result {
	var res Result
	for _, expr := range exprs {
		node, err := parser.ParseExpr(expr)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", expr, err))
			continue
		}

		//nolint:errcheck // the inspector never returns an error
		parser.Inspect(node, func(n parser.Node, _ []parser.Node) error {
			vs, ok := n.(*parser.VectorSelector)
			if !ok || vs.Name == "" {
				return nil
			}
			if !known[baseName(vs.Name)] {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("%s: unknown metric %q", expr, vs.Name))
			}
			return nil
		})
	}
	return res
}

func baseName(name string) string {
	for _, suffix := range histogramSuffixes {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}
