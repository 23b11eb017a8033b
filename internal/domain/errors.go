package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies storage outcomes so callers branch on kind instead of
// inspecting driver errors.
type ErrorKind int

const (
	KindFatal ErrorKind = iota
	KindNotFound
	KindConflict
	KindTransientIO
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTransientIO:
		return "transient_io"
	default:
		return "fatal"
	}
}

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrTransient = errors.New("transient storage failure")

	// ErrDropped marks a scraped item that was discarded without aborting the run.
	ErrDropped = errors.New("item dropped")
)

type StoreError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrTransient:
		return e.Kind == KindTransientIO
	}
	return false
}

// KindOf returns the kind carried by err, or KindFatal for unclassified errors.
func KindOf(err error) ErrorKind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindFatal
}

// ValidationError is returned for malformed input. Message is safe to show to end users.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Error types recorded in the errors table.
const (
	ErrorTypeValidation       = "Validation"
	ErrorTypeListingInsertion = "Listing insertion"
	ErrorTypePropertyInsert   = "Property insertion"
	ErrorTypeRawDataInsert    = "Raw data insertion"
	ErrorTypeImageInsert      = "Image insertion"
	ErrorTypeChangesInsert    = "Listing changes insertion"
)

// ErrorRecord is a deduplicated crawl error keyed by (URL, Type, Message).
type ErrorRecord struct {
	URL     string
	Type    string
	Message string
	Detail  string
}

func NewErrorRecord(url, errType string, err error) ErrorRecord {
	msg := err.Error()
	var se *StoreError
	if errors.As(err, &se) {
		msg = se.Err.Error()
	}
	return ErrorRecord{
		URL:     url,
		Type:    errType,
		Message: msg,
		Detail:  fmt.Sprintf("%+v", err),
	}
}
