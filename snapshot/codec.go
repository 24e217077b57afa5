// Package snapshot persists ranking snapshots as dated CSV files and keeps
// the manifest that points at the latest and previous ones.
package snapshot

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-rank-watch/features"
	"github.com/aluiziolira/go-rank-watch/models"
)

const flagColumnPrefix = "has_"

// Header returns the snapshot CSV column order: the fixed item columns,
// one has_<flag> column per feature in rule order, then captured_at.
func Header() []string {
	header := []string{"rank", "item_code", "item_name", "item_price", "review_average", "review_count"}
	for _, name := range features.Names() {
		header = append(header, flagColumnPrefix+name)
	}
	return append(header, "captured_at")
}

// EncodeCSV writes the snapshot to w, header first, one row per item in
// rank order.
func EncodeCSV(w io.Writer, snap *models.Snapshot) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Header()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	capturedAt := snap.CapturedAt.UTC().Format(time.RFC3339)
	flagNames := features.Names()

	for _, item := range snap.Items {
		record := make([]string, 0, 7+len(flagNames))
		record = append(record,
			strconv.Itoa(item.Rank),
			item.ItemCode,
			item.Name,
			strconv.FormatInt(item.Price, 10),
			strconv.FormatFloat(item.ReviewAverage, 'f', -1, 64),
			strconv.Itoa(item.ReviewCount),
		)
		for _, name := range flagNames {
			if item.Flag(name) {
				record = append(record, "1")
			} else {
				record = append(record, "0")
			}
		}
		record = append(record, capturedAt)

		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// DecodeCSV reads a snapshot back from r. Columns are resolved by header
// name, so files written before a flag was added still load; flags absent
// from the file come back false.
func DecodeCSV(r io.Reader) (*models.Snapshot, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	var flagColumns []string
	for i, name := range header {
		index[name] = i
		if strings.HasPrefix(name, flagColumnPrefix) {
			flagColumns = append(flagColumns, name)
		}
	}
	for _, required := range []string{"rank", "item_code", "item_name", "item_price"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("snapshot csv missing column %q", required)
		}
	}

	snap := &models.Snapshot{}
	row := 1 // the header
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}

		item := &models.RankedItem{
			ItemCode: field(record, index, "item_code"),
			Name:     field(record, index, "item_name"),
			Features: make(map[string]bool, len(flagColumns)),
		}
		if item.Rank, err = parseInt(field(record, index, "rank")); err != nil {
			return nil, fmt.Errorf("row %d: rank: %w", row, err)
		}
		if item.Price, err = parsePrice(field(record, index, "item_price")); err != nil {
			return nil, fmt.Errorf("row %d: item_price: %w", row, err)
		}
		if item.ReviewAverage, err = parseFloat(field(record, index, "review_average")); err != nil {
			return nil, fmt.Errorf("row %d: review_average: %w", row, err)
		}
		if item.ReviewCount, err = parseInt(field(record, index, "review_count")); err != nil {
			return nil, fmt.Errorf("row %d: review_count: %w", row, err)
		}
		for _, column := range flagColumns {
			item.Features[strings.TrimPrefix(column, flagColumnPrefix)] = field(record, index, column) == "1"
		}

		if snap.CapturedAt.IsZero() {
			if raw := field(record, index, "captured_at"); raw != "" {
				capturedAt, err := time.Parse(time.RFC3339, raw)
				if err != nil {
					return nil, fmt.Errorf("row %d: captured_at: %w", row, err)
				}
				snap.CapturedAt = capturedAt
			}
		}

		snap.Items = append(snap.Items, item)
	}

	return snap, nil
}

func field(record []string, index map[string]int, name string) string {
	i, ok := index[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func parseInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func parsePrice(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func parseFloat(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}
