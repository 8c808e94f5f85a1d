package coinmarketcap

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrRateLimited      = errors.New("rate limited")
	ErrSymbolNotFound   = errors.New("symbol not found")
	ErrCurrencyNotFound = errors.New("convert currency not found")
	ErrMissingPrice     = errors.New("missing price")
	ErrNegativePrice    = errors.New("negative price")
)

// StatusError is returned for any response whose status code is not 200.
type StatusError struct {
	StatusCode int
	// ErrorCode and Message come from the status block when the body has one.
	ErrorCode int
	Message   string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("unexpected status code: %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

func newStatusError(res *http.Response) *StatusError {
	statusErr := &StatusError{StatusCode: res.StatusCode}
	if res.Body == nil {
		return statusErr
	}
	var body struct {
		Status Status `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 2<<10)).Decode(&body); err != nil {
		return statusErr
	}
	statusErr.ErrorCode = body.Status.ErrorCode
	if body.Status.ErrorMessage != nil {
		statusErr.Message = *body.Status.ErrorMessage
	}
	return statusErr
}
