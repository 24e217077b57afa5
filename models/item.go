// Package models defines data structures shared across the fetch and diff stages.
package models

import (
	"fmt"
	"time"
)

// RankedItem is one entry of a ranking snapshot.
type RankedItem struct {
	Rank          int             `csv:"rank" json:"rank"`
	ItemCode      string          `csv:"item_code" json:"item_code"`
	Name          string          `csv:"item_name" json:"item_name"`
	Price         int64           `csv:"item_price" json:"item_price"`
	ReviewAverage float64         `csv:"review_average" json:"review_average"`
	ReviewCount   int             `csv:"review_count" json:"review_count"`
	Features      map[string]bool `csv:"-" json:"features"`
}

// Flag reports the named feature flag, treating a missing entry as false.
func (it *RankedItem) Flag(name string) bool {
	if it.Features == nil {
		return false
	}
	return it.Features[name]
}

// Snapshot is one complete, immutable capture of the ranking at a point in time.
// Items are ordered by rank, rank 1 first.
type Snapshot struct {
	CapturedAt time.Time
	Items      []*RankedItem
}

// Len returns the number of ranked items.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}

// RanksByCode builds the item-code to rank index used by the change detector.
func (s *Snapshot) RanksByCode() map[string]int {
	ranks := make(map[string]int, s.Len())
	if s == nil {
		return ranks
	}
	for _, it := range s.Items {
		ranks[it.ItemCode] = it.Rank
	}
	return ranks
}

// AveragePrice returns the mean item price, or 0 for an empty snapshot.
func (s *Snapshot) AveragePrice() float64 {
	if s.Len() == 0 {
		return 0
	}
	var total int64
	for _, it := range s.Items {
		total += it.Price
	}
	return float64(total) / float64(len(s.Items))
}

// Validate checks the snapshot invariants: item codes unique, prices
// non-negative, and ranks forming exactly the contiguous set {1..N}.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("snapshot is nil")
	}
	seenCodes := make(map[string]struct{}, len(s.Items))
	seenRanks := make(map[int]struct{}, len(s.Items))
	for i, it := range s.Items {
		if it == nil {
			return fmt.Errorf("item at index %d is nil", i)
		}
		if it.ItemCode == "" {
			return fmt.Errorf("item at rank %d has empty item code", it.Rank)
		}
		if _, ok := seenCodes[it.ItemCode]; ok {
			return fmt.Errorf("duplicate item code %q", it.ItemCode)
		}
		seenCodes[it.ItemCode] = struct{}{}
		if it.Rank < 1 || it.Rank > len(s.Items) {
			return fmt.Errorf("rank %d out of range 1..%d", it.Rank, len(s.Items))
		}
		if _, ok := seenRanks[it.Rank]; ok {
			return fmt.Errorf("duplicate rank %d", it.Rank)
		}
		seenRanks[it.Rank] = struct{}{}
		if it.Price < 0 {
			return fmt.Errorf("item %q has negative price %d", it.ItemCode, it.Price)
		}
	}
	return nil
}

// FetchResult holds the overall outcome of one fetch run.
type FetchResult struct {
	StartTime      time.Time
	EndTime        time.Time
	PageCount      int
	RequestCount   int
	RetryCount     int
	ErrorCount     int
	RawCount       int
	DuplicateCount int
}
