package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printProductTable(products []domain.TrackedProduct) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID\tRETAILER\tTITLE\tPRICE\tSTOCK\tTRACKED\tNEXT POLL\n")
	for i := range products {
		p := &products[i]
		tw.writef("%s\t%s\t%s\t%s\t%s\t%v\t%s\n",
			p.ID,
			p.Retailer,
			p.Title,
			formatPrice(p.LastSnapshot),
			formatStock(p.LastSnapshot),
			p.Tracked,
			p.NextPollAt.Local().Format(time.RFC3339),
		)
	}
	return tw.finish()
}

func printProductDetail(p *domain.TrackedProduct) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID:\t%s\n", p.ID)
	tw.writef("Retailer:\t%s\n", p.Retailer)
	tw.writef("Source ID:\t%s\n", p.SourceID)
	tw.writef("Title:\t%s\n", p.Title)
	tw.writef("URL:\t%s\n", p.URL)
	tw.writef("Tracked:\t%v\n", p.Tracked)
	tw.writef("Price:\t%s\n", formatPrice(p.LastSnapshot))
	tw.writef("Stock:\t%s\n", formatStock(p.LastSnapshot))
	tw.writef("Degraded:\t%v\n", p.Degraded)
	tw.writef("Failures:\t%d\n", p.ConsecutiveFailures)
	if p.LastSnapshot != nil && p.LastSnapshot.IsAuction() {
		tw.writef("Auction ends:\t%s\n",
			p.LastSnapshot.AuctionEndTime.Local().Format(time.RFC3339))
	}
	tw.writef("Next poll:\t%s\n", p.NextPollAt.Local().Format(time.RFC3339))
	return tw.finish()
}

func printHistoryTable(pts []domain.HistoryPoint) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("TIMESTAMP\tPRICE\tCURRENCY\n")
	for _, pt := range pts {
		tw.writef("%s\t%.2f\t%s\n",
			pt.Timestamp.Local().Format(time.RFC3339),
			pt.Price,
			pt.Currency,
		)
	}
	return tw.finish()
}

func printAlertTable(alerts []domain.Alert) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID\tKIND\tMESSAGE\tCREATED\tREAD\n")
	for i := range alerts {
		a := &alerts[i]
		tw.writef("%s\t%s\t%s\t%s\t%v\n",
			a.ID,
			a.Kind,
			a.Message,
			a.CreatedAt.Local().Format(time.RFC3339),
			a.IsRead,
		)
	}
	return tw.finish()
}

func formatPrice(s *domain.Snapshot) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f %s", s.Price, s.Currency)
}

func formatStock(s *domain.Snapshot) string {
	switch {
	case s == nil:
		return "-"
	case s.InStock:
		return "in stock"
	default:
		return "out"
	}
}
