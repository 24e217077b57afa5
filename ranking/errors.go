package ranking

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FetchError indicates a page fetch that failed after the retry budget was
// exhausted. It aborts the whole run: partial rankings are never persisted.
type FetchError struct {
	Page int
	Err  error
}

func (e FetchError) Error() string {
	return fmt.Sprintf("fetch page %d: %v", e.Page, e.Err)
}

func (e FetchError) Unwrap() error {
	return e.Err
}

// ValidationError indicates the fetch produced fewer items than the
// configured sane minimum, so the run aborts before writing anything.
type ValidationError struct {
	Count int
	Min   int
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("fetched %d items, below minimum %d", e.Count, e.Min)
}

// APIError carries a non-2xx response from the ranking endpoint, including
// the error fields the API embeds in its JSON body when present.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("ranking api status %d: %s: %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("ranking api status %d", e.StatusCode)
}

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the API rate-limited the request.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// classifyError folds transport failures and HTTP statuses into the typed
// errors above so metrics can label them.
func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode == http.StatusTooManyRequests {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		return ErrRateLimited{Err: wrapped}
	}

	return err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var api APIError
	if errors.As(err, &api) {
		return "api"
	}
	var validation ValidationError
	if errors.As(err, &validation) {
		return "validation"
	}
	return "other"
}
