// Package diff classifies movement between two ranking snapshots and
// aggregates it into a report.
package diff

import (
	"math"
	"sort"
	"time"

	"github.com/aluiziolira/go-rank-watch/models"
)

// Kind classifies one item's movement between the baseline and the current
// snapshot.
type Kind string

const (
	KindNew       Kind = "NEW"
	KindDropped   Kind = "DROPPED"
	KindRisen     Kind = "RISEN"
	KindFallen    Kind = "FALLEN"
	KindUnchanged Kind = "UNCHANGED"
)

// Kinds lists every classification, in report order.
func Kinds() []Kind {
	return []Kind{KindNew, KindDropped, KindRisen, KindFallen, KindUnchanged}
}

// Change is one item's movement. Delta is the magnitude of the rank move;
// the direction lives in Kind. NEW items have no previous rank and DROPPED
// items no current rank, and neither carries a delta.
type Change struct {
	ItemCode     string `json:"item_code"`
	Name         string `json:"item_name,omitempty"`
	Kind         Kind   `json:"classification"`
	PreviousRank int    `json:"previous_rank,omitempty"`
	CurrentRank  int    `json:"current_rank,omitempty"`
	Delta        int    `json:"delta"`
}

// Summary aggregates one comparison.
type Summary struct {
	CurrentCount    int      `json:"current_count"`
	PreviousCount   int      `json:"previous_count"`
	NewCount        int      `json:"new_entries"`
	DroppedCount    int      `json:"dropped_items"`
	RisenCount      int      `json:"risen_items"`
	FallenCount     int      `json:"fallen_items"`
	UnchangedCount  int      `json:"unchanged_items"`
	TurnoverRatePct float64  `json:"turnover_rate_pct"`
	AvgPriceCurrent float64  `json:"avg_price_current"`
	AvgPricePrev    float64  `json:"avg_price_previous"`
	PriceChangePct  float64  `json:"price_change_pct"`
	Surges          []Change `json:"surges,omitempty"`
}

// Report is the outcome of comparing a snapshot against its baseline. The
// per-item changes go to the CSV artifact; the JSON artifact carries the
// summary.
type Report struct {
	GeneratedAt     time.Time `json:"generated_at"`
	BaselineMissing bool      `json:"baseline_missing"`
	CurrentFile     string    `json:"current_file,omitempty"`
	PreviousFile    string    `json:"previous_file,omitempty"`
	Changes         []Change  `json:"-"`
	Summary         Summary   `json:"summary"`
}

// Compare classifies every item in prev and curr. A nil prev means no
// baseline exists yet: every current item is NEW and the report says so
// instead of failing. Comparing the same pair twice yields the same changes
// in the same order.
//
// Changes are ordered by movement weight, largest first: entering or leaving
// the ranking outweighs any rank move, then moves sort by magnitude, with
// UNCHANGED last. Ties break on ascending item code.
func Compare(prev, curr *models.Snapshot, surgeThreshold int) *Report {
	report := &Report{
		GeneratedAt:     time.Now().UTC(),
		BaselineMissing: prev == nil,
	}

	prevByCode := itemsByCode(prev)
	currByCode := itemsByCode(curr)

	changes := make([]Change, 0, len(prevByCode)+len(currByCode))

	for _, item := range snapshotItems(curr) {
		prevItem, existed := prevByCode[item.ItemCode]
		if !existed {
			changes = append(changes, Change{
				ItemCode:    item.ItemCode,
				Name:        item.Name,
				Kind:        KindNew,
				CurrentRank: item.Rank,
			})
			continue
		}

		change := Change{
			ItemCode:     item.ItemCode,
			Name:         item.Name,
			PreviousRank: prevItem.Rank,
			CurrentRank:  item.Rank,
		}
		switch d := prevItem.Rank - item.Rank; {
		case d > 0:
			change.Kind = KindRisen
			change.Delta = d
		case d < 0:
			change.Kind = KindFallen
			change.Delta = -d
		default:
			change.Kind = KindUnchanged
		}
		changes = append(changes, change)
	}

	for _, item := range snapshotItems(prev) {
		if _, stillRanked := currByCode[item.ItemCode]; stillRanked {
			continue
		}
		changes = append(changes, Change{
			ItemCode:     item.ItemCode,
			Name:         item.Name,
			Kind:         KindDropped,
			PreviousRank: item.Rank,
		})
	}

	sort.Slice(changes, func(i, j int) bool {
		wi, wj := weight(changes[i]), weight(changes[j])
		if wi != wj {
			return wi > wj
		}
		return changes[i].ItemCode < changes[j].ItemCode
	})

	report.Changes = changes
	report.Summary = summarize(prev, curr, changes, surgeThreshold)
	return report
}

// weight orders changes: board entry and exit beat any finite move.
func weight(c Change) int {
	switch c.Kind {
	case KindNew, KindDropped:
		return math.MaxInt
	default:
		return c.Delta
	}
}

func itemsByCode(s *models.Snapshot) map[string]*models.RankedItem {
	items := make(map[string]*models.RankedItem, s.Len())
	if s == nil {
		return items
	}
	for _, item := range s.Items {
		items[item.ItemCode] = item
	}
	return items
}

func snapshotItems(s *models.Snapshot) []*models.RankedItem {
	if s == nil {
		return nil
	}
	return s.Items
}

func summarize(prev, curr *models.Snapshot, changes []Change, surgeThreshold int) Summary {
	summary := Summary{
		CurrentCount:    curr.Len(),
		PreviousCount:   prev.Len(),
		AvgPriceCurrent: curr.AveragePrice(),
		AvgPricePrev:    prev.AveragePrice(),
	}

	for _, change := range changes {
		switch change.Kind {
		case KindNew:
			summary.NewCount++
		case KindDropped:
			summary.DroppedCount++
		case KindRisen:
			summary.RisenCount++
		case KindFallen:
			summary.FallenCount++
		case KindUnchanged:
			summary.UnchangedCount++
		}

		if surgeThreshold > 0 &&
			(change.Kind == KindRisen || change.Kind == KindFallen) &&
			change.Delta >= surgeThreshold {
			summary.Surges = append(summary.Surges, change)
		}
	}

	if summary.CurrentCount > 0 {
		summary.TurnoverRatePct = float64(summary.NewCount+summary.DroppedCount) /
			float64(summary.CurrentCount) * 100
	}
	if summary.AvgPricePrev > 0 {
		summary.PriceChangePct = (summary.AvgPriceCurrent - summary.AvgPricePrev) /
			summary.AvgPricePrev * 100
	}
	return summary
}

// CountByKind returns how many changes carry the given classification.
func (r *Report) CountByKind(kind Kind) int {
	switch kind {
	case KindNew:
		return r.Summary.NewCount
	case KindDropped:
		return r.Summary.DroppedCount
	case KindRisen:
		return r.Summary.RisenCount
	case KindFallen:
		return r.Summary.FallenCount
	case KindUnchanged:
		return r.Summary.UnchangedCount
	}
	return 0
}
