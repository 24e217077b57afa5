package snapshot

import "fmt"

// BaselineMissingError indicates the snapshot a diff wanted to compare
// against does not exist. Callers treat it as "first run", not a failure.
type BaselineMissingError struct {
	Path string
}

func (e BaselineMissingError) Error() string {
	return fmt.Sprintf("baseline snapshot %s does not exist", e.Path)
}

// WriteError indicates a snapshot or manifest could not be persisted.
type WriteError struct {
	Path string
	Err  error
}

func (e WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e WriteError) Unwrap() error {
	return e.Err
}
