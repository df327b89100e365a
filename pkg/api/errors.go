package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ErrUnauthorized matches any 401 answer from the backend.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Endpoint   string
	Detail     string
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: status %d", e.Endpoint, e.StatusCode)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 answers.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// ClientError reports whether the backend rejected the request itself.
func (e *StatusError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// TransportError means the backend could not be reached or its answer
// could not be read.
type TransportError struct {
	Err      error
	Endpoint string
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Detail returns the server supplied message of a StatusError, or "".
func Detail(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Detail
	}
	return ""
}

// detailFromBody extracts the backend's "detail". A string is used as is;
// a validation error list becomes "loc: msg" items joined by "; ".
func detailFromBody(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}

	var items []validationItem
	if err := json.Unmarshal(payload.Detail, &items); err != nil {
		return ""
	}
	msgs := make([]string, 0, len(items))
	for _, it := range items {
		if it.Msg == "" {
			continue
		}
		if loc := it.path(); loc != "" {
			msgs = append(msgs, loc+": "+it.Msg)
			continue
		}
		msgs = append(msgs, it.Msg)
	}
	return strings.Join(msgs, "; ")
}

// validationItem is one entry of a 422 detail list.
type validationItem struct {
	Msg string `json:"msg"`
	Loc []any  `json:"loc"`
}

func (v validationItem) path() string {
	parts := make([]string, 0, len(v.Loc))
	for _, p := range v.Loc {
		switch p := p.(type) {
		case string:
			parts = append(parts, p)
		case float64:
			parts = append(parts, strconv.Itoa(int(p)))
		}
	}
	return strings.Join(parts, ".")
}
