package diff

import (
	"reflect"
	"testing"
	"time"

	"github.com/aluiziolira/go-rank-watch/models"
)

func ranked(rank int, code string) *models.RankedItem {
	return &models.RankedItem{
		Rank:     rank,
		ItemCode: code,
		Name:     "Item " + code,
		Price:    1000,
	}
}

func snapshotOf(items ...*models.RankedItem) *models.Snapshot {
	return &models.Snapshot{
		CapturedAt: time.Date(2026, 8, 25, 6, 0, 0, 0, time.UTC),
		Items:      items,
	}
}

func TestCompareWorkedExample(t *testing.T) {
	prev := snapshotOf(ranked(1, "A"), ranked(2, "B"), ranked(3, "C"))
	curr := snapshotOf(ranked(1, "B"), ranked(2, "C"), ranked(3, "D"))

	report := Compare(prev, curr, 5)

	want := []struct {
		code  string
		kind  Kind
		delta int
	}{
		{"A", KindDropped, 0},
		{"D", KindNew, 0},
		{"B", KindRisen, 1},
		{"C", KindRisen, 1},
	}

	if len(report.Changes) != len(want) {
		t.Fatalf("changes=%d, want %d", len(report.Changes), len(want))
	}
	for i, w := range want {
		got := report.Changes[i]
		if got.ItemCode != w.code || got.Kind != w.kind || got.Delta != w.delta {
			t.Fatalf("change %d = %s/%s/%d, want %s/%s/%d",
				i, got.ItemCode, got.Kind, got.Delta, w.code, w.kind, w.delta)
		}
	}

	if report.BaselineMissing {
		t.Fatalf("baseline missing should be false")
	}
	s := report.Summary
	if s.NewCount != 1 || s.DroppedCount != 1 || s.RisenCount != 2 || s.FallenCount != 0 || s.UnchangedCount != 0 {
		t.Fatalf("summary counts new=%d dropped=%d risen=%d fallen=%d unchanged=%d",
			s.NewCount, s.DroppedCount, s.RisenCount, s.FallenCount, s.UnchangedCount)
	}
}

func TestCompareDeltaIsMagnitude(t *testing.T) {
	prev := snapshotOf(ranked(10, "riser"), ranked(3, "faller"))
	curr := snapshotOf(ranked(3, "riser"), ranked(10, "faller"))

	report := Compare(prev, curr, 0)

	byCode := make(map[string]Change, len(report.Changes))
	for _, change := range report.Changes {
		byCode[change.ItemCode] = change
	}

	riser := byCode["riser"]
	if riser.Kind != KindRisen || riser.Delta != 7 {
		t.Fatalf("riser=%s/%d, want RISEN/7", riser.Kind, riser.Delta)
	}
	if riser.PreviousRank != 10 || riser.CurrentRank != 3 {
		t.Fatalf("riser ranks=%d→%d, want 10→3", riser.PreviousRank, riser.CurrentRank)
	}

	faller := byCode["faller"]
	if faller.Kind != KindFallen || faller.Delta != 7 {
		t.Fatalf("faller=%s/%d, want FALLEN/7", faller.Kind, faller.Delta)
	}
}

func TestCompareNoBaseline(t *testing.T) {
	curr := snapshotOf(ranked(1, "a"), ranked(2, "b"), ranked(3, "c"))

	report := Compare(nil, curr, 5)

	if !report.BaselineMissing {
		t.Fatalf("baseline missing should be true")
	}
	if len(report.Changes) != 3 {
		t.Fatalf("changes=%d, want 3", len(report.Changes))
	}
	for _, change := range report.Changes {
		if change.Kind != KindNew {
			t.Fatalf("change %s = %s, want NEW", change.ItemCode, change.Kind)
		}
		if change.PreviousRank != 0 {
			t.Fatalf("NEW change should have no previous rank")
		}
	}
	if report.Summary.NewCount != 3 || report.Summary.PreviousCount != 0 {
		t.Fatalf("summary new=%d previous=%d, want 3/0",
			report.Summary.NewCount, report.Summary.PreviousCount)
	}
}

func TestCompareEmptyPreviousSnapshot(t *testing.T) {
	prev := snapshotOf()
	curr := snapshotOf(ranked(1, "a"), ranked(2, "b"))

	report := Compare(prev, curr, 5)

	if report.BaselineMissing {
		t.Fatalf("an empty baseline is still a baseline")
	}
	if report.Summary.NewCount != 2 || report.Summary.DroppedCount != 0 {
		t.Fatalf("summary new=%d dropped=%d, want 2/0",
			report.Summary.NewCount, report.Summary.DroppedCount)
	}
}

func TestCompareIdenticalSnapshots(t *testing.T) {
	prev := snapshotOf(ranked(1, "a"), ranked(2, "b"), ranked(3, "c"))
	curr := snapshotOf(ranked(1, "a"), ranked(2, "b"), ranked(3, "c"))

	report := Compare(prev, curr, 5)

	if len(report.Changes) != 3 {
		t.Fatalf("changes=%d, want 3", len(report.Changes))
	}
	for _, change := range report.Changes {
		if change.Kind != KindUnchanged || change.Delta != 0 {
			t.Fatalf("change %s = %s/%d, want UNCHANGED/0",
				change.ItemCode, change.Kind, change.Delta)
		}
	}
	if report.Summary.TurnoverRatePct != 0 {
		t.Fatalf("turnover=%v, want 0", report.Summary.TurnoverRatePct)
	}
}

func TestCompareIsDeterministic(t *testing.T) {
	prev := snapshotOf(ranked(1, "a"), ranked(2, "b"), ranked(3, "c"), ranked(4, "d"))
	curr := snapshotOf(ranked(1, "c"), ranked(2, "a"), ranked(3, "e"), ranked(4, "b"))

	first := Compare(prev, curr, 5)
	second := Compare(prev, curr, 5)

	if !reflect.DeepEqual(first.Changes, second.Changes) {
		t.Fatalf("changes differ between identical comparisons")
	}
	if !reflect.DeepEqual(first.Summary, second.Summary) {
		t.Fatalf("summaries differ between identical comparisons")
	}
}

func TestCompareOrdering(t *testing.T) {
	// big moves first, NEW/DROPPED above all moves, code breaks ties.
	prev := snapshotOf(
		ranked(1, "gone"),
		ranked(2, "small"),
		ranked(10, "big"),
		ranked(4, "same"),
	)
	curr := snapshotOf(
		ranked(1, "big"),
		ranked(3, "small"),
		ranked(4, "same"),
		ranked(9, "fresh"),
	)

	report := Compare(prev, curr, 5)

	wantOrder := []string{"fresh", "gone", "big", "small", "same"}
	if len(report.Changes) != len(wantOrder) {
		t.Fatalf("changes=%d, want %d", len(report.Changes), len(wantOrder))
	}
	for i, code := range wantOrder {
		if report.Changes[i].ItemCode != code {
			t.Fatalf("position %d = %q, want %q", i, report.Changes[i].ItemCode, code)
		}
	}
}

func TestCompareSummaryPricesAndTurnover(t *testing.T) {
	prevItems := []*models.RankedItem{ranked(1, "a"), ranked(2, "b")}
	prevItems[0].Price = 1000
	prevItems[1].Price = 3000
	currItems := []*models.RankedItem{ranked(1, "a"), ranked(2, "c")}
	currItems[0].Price = 2000
	currItems[1].Price = 2400

	report := Compare(snapshotOf(prevItems...), snapshotOf(currItems...), 5)

	s := report.Summary
	if s.AvgPricePrev != 2000 {
		t.Fatalf("avg previous=%v, want 2000", s.AvgPricePrev)
	}
	if s.AvgPriceCurrent != 2200 {
		t.Fatalf("avg current=%v, want 2200", s.AvgPriceCurrent)
	}
	if s.PriceChangePct != 10 {
		t.Fatalf("price change=%v%%, want 10", s.PriceChangePct)
	}
	// one new + one dropped over two current items.
	if s.TurnoverRatePct != 100 {
		t.Fatalf("turnover=%v%%, want 100", s.TurnoverRatePct)
	}
}

func TestCompareSurgesBothDirections(t *testing.T) {
	prev := snapshotOf(
		ranked(10, "surge-up"),
		ranked(1, "surge-down"),
		ranked(5, "small-move"),
	)
	curr := snapshotOf(
		ranked(1, "surge-up"),
		ranked(10, "surge-down"),
		ranked(6, "small-move"),
	)

	report := Compare(prev, curr, 5)

	if len(report.Summary.Surges) != 2 {
		t.Fatalf("surges=%d, want 2", len(report.Summary.Surges))
	}
	codes := map[string]Kind{}
	for _, surge := range report.Summary.Surges {
		codes[surge.ItemCode] = surge.Kind
	}
	if codes["surge-up"] != KindRisen || codes["surge-down"] != KindFallen {
		t.Fatalf("surges=%v, want surge-up RISEN and surge-down FALLEN", codes)
	}
}

func TestReportCountByKind(t *testing.T) {
	prev := snapshotOf(ranked(1, "a"), ranked(2, "b"), ranked(3, "c"))
	curr := snapshotOf(ranked(1, "b"), ranked(2, "c"), ranked(3, "d"))

	report := Compare(prev, curr, 5)

	for _, tt := range []struct {
		kind Kind
		want int
	}{
		{KindNew, 1},
		{KindDropped, 1},
		{KindRisen, 2},
		{KindFallen, 0},
		{KindUnchanged, 0},
	} {
		if got := report.CountByKind(tt.kind); got != tt.want {
			t.Fatalf("count %s = %d, want %d", tt.kind, got, tt.want)
		}
	}
}
