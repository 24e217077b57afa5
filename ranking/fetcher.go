package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-rank-watch/config"
	"github.com/aluiziolira/go-rank-watch/features"
	"github.com/aluiziolira/go-rank-watch/models"
)

// ItemSource yields one ranking page at a time. Page numbers are 1-based.
type ItemSource interface {
	FetchPage(ctx context.Context, page int) ([]Item, error)
}

// sourceCounters is implemented by sources that track their own HTTP attempt
// counts; Client does.
type sourceCounters interface {
	Requests() int
	Retries() int
}

// Fetcher walks ranking pages in order and assembles a validated snapshot.
type Fetcher struct {
	cfg     *config.Config
	source  ItemSource
	metrics *Metrics
}

// NewFetcher builds a fetcher reading from source.
func NewFetcher(cfg *config.Config, source ItemSource, metrics *Metrics) *Fetcher {
	return &Fetcher{cfg: cfg, source: source, metrics: metrics}
}

// Fetch retrieves up to MaxPages pages sequentially, stopping early once a
// page comes back short. Items are deduplicated by item code (first
// occurrence wins) and re-ranked 1..N so the snapshot is always contiguous,
// then every item gets its derived feature flags.
//
// A page failure aborts the run with a FetchError; fewer than MinItems
// surviving items aborts with a ValidationError. Nothing is persisted here,
// so a failed run leaves no partial snapshot behind.
func (f *Fetcher) Fetch(ctx context.Context) (*models.Snapshot, *models.FetchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	// The cache must be able to hold every code a full crawl can produce,
	// otherwise eviction would let a re-seen code through as new.
	size := f.cfg.DedupeMaxSize
	if want := f.cfg.MaxPages * f.cfg.PageSize; want > size {
		size = want
	}
	seen, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, nil, fmt.Errorf("dedupe cache: %w", err)
	}

	var (
		collected  []Item
		rawCount   int
		duplicates int
		malformed  int
		pages      int
	)

	for page := 1; page <= f.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		pageItems, err := f.source.FetchPage(ctx, page)
		if err != nil {
			return nil, nil, FetchError{Page: page, Err: err}
		}
		pages++
		rawCount += len(pageItems)

		for _, item := range pageItems {
			if item.ItemCode == "" {
				malformed++
				slog.Warn("skipping item without code",
					slog.Int("page", page),
					slog.Int("rank", item.Rank),
				)
				continue
			}
			if seen.Contains(item.ItemCode) {
				duplicates++
				continue
			}
			seen.Add(item.ItemCode, struct{}{})
			collected = append(collected, item)
		}

		slog.Debug("fetched ranking page",
			slog.Int("page", page),
			slog.Int("items", len(pageItems)),
			slog.Int("total", len(collected)),
		)

		if len(pageItems) < f.cfg.PageSize {
			break
		}
	}

	if len(collected) < f.cfg.MinItems {
		vErr := ValidationError{Count: len(collected), Min: f.cfg.MinItems}
		f.metrics.IncError(errorTypeLabel(vErr))
		return nil, nil, vErr
	}

	// Pages arrive in rank order, but dedupe can leave gaps; sort on the
	// upstream rank before assigning our contiguous one.
	sort.SliceStable(collected, func(i, j int) bool {
		return collected[i].Rank < collected[j].Rank
	})

	ranked := make([]*models.RankedItem, len(collected))
	for i, item := range collected {
		ranked[i] = &models.RankedItem{
			Rank:          i + 1,
			ItemCode:      item.ItemCode,
			Name:          item.Name,
			Price:         item.Price,
			ReviewAverage: item.ReviewAverage,
			ReviewCount:   item.ReviewCount,
			Features:      features.Derive(item.Name, item.Caption),
		}
	}
	f.metrics.AddItems(len(ranked))

	snapshot := &models.Snapshot{
		CapturedAt: time.Now().UTC(),
		Items:      ranked,
	}
	result := &models.FetchResult{
		StartTime:      start,
		EndTime:        time.Now(),
		PageCount:      pages,
		RawCount:       rawCount,
		DuplicateCount: duplicates,
		ErrorCount:     malformed,
	}
	if counters, ok := f.source.(sourceCounters); ok {
		result.RequestCount = counters.Requests()
		result.RetryCount = counters.Retries()
	}
	return snapshot, result, nil
}
