package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrMalformedRecord     = errors.New("malformed record")
	ErrMissingFxRate       = errors.New("missing fx rate")
	ErrUnknownIntent       = errors.New("unknown intent")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrNoData              = errors.New("no data for period")
	ErrNoSnapshot          = errors.New("no ledger snapshot loaded")
)

// MalformedRecordError points at the offending cell. Row is 1-based and
// counts the header, so it matches what a spreadsheet shows.
type MalformedRecordError struct {
	Sheet  string
	Row    int
	Column string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("malformed record in %s: column %q: %s", e.Sheet, e.Column, e.Reason)
	}
	return fmt.Sprintf("malformed record in %s row %d column %q: %s", e.Sheet, e.Row, e.Column, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error { return ErrMalformedRecord }

type MissingFxRateError struct {
	Month    Month
	Currency string
}

func (e *MissingFxRateError) Error() string {
	return fmt.Sprintf("missing fx rate for %s in %s", e.Currency, e.Month)
}

func (e *MissingFxRateError) Unwrap() error { return ErrMissingFxRate }

// ErrorKind is the machine-readable class carried in query responses.
type ErrorKind string

const (
	KindUnknownIntent       ErrorKind = "unknown_intent"
	KindInsufficientHistory ErrorKind = "insufficient_history"
	KindNoData              ErrorKind = "no_data"
	KindNoSnapshot          ErrorKind = "no_snapshot"
	KindBadRequest          ErrorKind = "bad_request"
	KindInternal            ErrorKind = "internal"
)

// KindOf classifies err for a response payload.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrUnknownIntent):
		return KindUnknownIntent
	case errors.Is(err, ErrInsufficientHistory):
		return KindInsufficientHistory
	case errors.Is(err, ErrNoData):
		return KindNoData
	case errors.Is(err, ErrNoSnapshot):
		return KindNoSnapshot
	case errors.Is(err, ErrInvalidMonth):
		return KindBadRequest
	}
	return KindInternal
}
