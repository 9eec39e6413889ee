package engine

import (
	"sort"
	"time"

	domain "github.com/tlundberg/wishwatch/pkg/types"
)

// Historian applies the history retention policy: consecutive duplicate
// prices are not appended, points older than the retention window are
// thinned to per-bucket extrema, and the series is capped at a fixed point
// count. The first and last points of a series are always preserved.
type Historian struct {
	window time.Duration
	cap    int
	bucket time.Duration
}

// NewHistorian creates a historian with the given retention window, point
// cap, and compaction bucket size.
func NewHistorian(window time.Duration, pointCap int, bucket time.Duration) *Historian {
	return &Historian{window: window, cap: pointCap, bucket: bucket}
}

// Append returns the series with pt appended, unless pt repeats the last
// point's (price, currency) pair. The boolean reports whether the point was
// added.
func (h *Historian) Append(
	pts []domain.HistoryPoint,
	pt domain.HistoryPoint,
) ([]domain.HistoryPoint, bool) {
	if len(pts) > 0 && pts[len(pts)-1].SamePrice(pt) {
		return pts, false
	}
	return append(pts, pt), true
}

// Compact thins a series: points older than the retention window are reduced
// to the min and max of each time bucket, then the cap is enforced by
// dropping the oldest non-extremum points first. The input is not modified.
func (h *Historian) Compact(
	pts []domain.HistoryPoint,
	now time.Time,
) []domain.HistoryPoint {
	if len(pts) <= 2 {
		return clonePoints(pts)
	}

	cutoff := now.Add(-h.window)
	extrema := h.bucketExtrema(pts)

	out := make([]domain.HistoryPoint, 0, len(pts))
	for i, pt := range pts {
		if i == 0 || i == len(pts)-1 {
			out = append(out, pt)
			continue
		}
		if pt.Timestamp.Before(cutoff) && !extrema[pt.Timestamp.UnixNano()] {
			continue
		}
		out = append(out, pt)
	}

	if len(out) > h.cap {
		out = h.enforceCap(out, extrema)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// enforceCap drops the oldest non-endpoint points until the series fits the
// cap, preferring non-extrema over bucket extrema.
func (h *Historian) enforceCap(
	pts []domain.HistoryPoint,
	extrema map[int64]bool,
) []domain.HistoryPoint {
	excess := len(pts) - h.cap
	drop := make(map[int64]bool, excess)

	for pass := 0; pass < 2 && excess > 0; pass++ {
		for i := 1; i < len(pts)-1 && excess > 0; i++ {
			key := pts[i].Timestamp.UnixNano()
			if drop[key] {
				continue
			}
			if pass == 0 && extrema[key] {
				continue
			}
			drop[key] = true
			excess--
		}
	}

	kept := make([]domain.HistoryPoint, 0, h.cap)
	for _, pt := range pts {
		if !drop[pt.Timestamp.UnixNano()] {
			kept = append(kept, pt)
		}
	}
	return kept
}

// bucketExtrema marks the timestamps holding each bucket's min and max price.
func (h *Historian) bucketExtrema(pts []domain.HistoryPoint) map[int64]bool {
	type pair struct{ min, max domain.HistoryPoint }
	buckets := make(map[int64]pair)
	for _, pt := range pts {
		key := pt.Timestamp.Truncate(h.bucket).UnixNano()
		p, ok := buckets[key]
		if !ok {
			buckets[key] = pair{min: pt, max: pt}
			continue
		}
		if pt.Price < p.min.Price {
			p.min = pt
		}
		if pt.Price > p.max.Price {
			p.max = pt
		}
		buckets[key] = p
	}

	marks := make(map[int64]bool, 2*len(buckets))
	for _, p := range buckets {
		marks[p.min.Timestamp.UnixNano()] = true
		marks[p.max.Timestamp.UnixNano()] = true
	}
	return marks
}

func clonePoints(pts []domain.HistoryPoint) []domain.HistoryPoint {
	out := make([]domain.HistoryPoint, len(pts))
	copy(out, pts)
	return out
}
