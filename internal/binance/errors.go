package binance

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData is returned when an endpoint answers with an empty result.
	ErrNoData = errors.New("no data")

	// ErrMalformed is returned when a response body or field cannot be decoded.
	ErrMalformed = errors.New("malformed response")
)

// FetchError is the typed failure of one upstream call after the retry policy gave up.
type FetchError struct {
	Path       string
	StatusCode int // 0 when no HTTP response was received
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("GET %s failed after %d attempt(s) with status %d: %v", e.Path, e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("GET %s failed after %d attempt(s): %v", e.Path, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// APIError is the error payload returned by the exchange on non-2xx responses.
type APIError struct {
	Code    int64  `json:"code"`
	Message string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}
