package diff

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// WriteCSV writes the per-item change rows to path. Cells that do not apply
// to a classification stay empty: NEW has no previous rank, DROPPED no
// current rank, and neither has a delta. The file is written to a temp file
// and renamed into place.
func WriteCSV(path string, report *Report) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".changes_*.tmp")
	if err != nil {
		return fmt.Errorf("create changes csv: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	header := []string{"item_code", "classification", "previous_rank", "current_rank", "delta"}
	if err := writer.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write changes header: %w", err)
	}

	for _, change := range report.Changes {
		record := []string{
			change.ItemCode,
			string(change.Kind),
			rankCell(change.PreviousRank),
			rankCell(change.CurrentRank),
			deltaCell(change),
		}
		if err := writer.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("write changes record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush changes csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close changes csv: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename changes csv: %w", err)
	}
	return nil
}

// WriteJSON writes the report summary document to path.
func WriteJSON(path string, report *Report) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode changes json: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".changes_*.tmp")
	if err != nil {
		return fmt.Errorf("create changes json: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write changes json: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close changes json: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename changes json: %w", err)
	}
	return nil
}

func rankCell(rank int) string {
	if rank == 0 {
		return ""
	}
	return strconv.Itoa(rank)
}

func deltaCell(change Change) string {
	if change.Kind == KindNew || change.Kind == KindDropped {
		return ""
	}
	return strconv.Itoa(change.Delta)
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
