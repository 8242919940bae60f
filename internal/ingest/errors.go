package ingest

import "fmt"

// Reason classifies why a file was skipped
type Reason string

const (
	ReasonMIMEType      Reason = "mime_type"
	ReasonTooLarge      Reason = "too_large"
	ReasonEmpty         Reason = "empty"
	ReasonDecodeFailure Reason = "decode_failure"
)

// ValidationError reports one skipped file. It is never fatal to a batch.
type ValidationError struct {
	Filename string `json:"filename"`
	Reason   Reason `json:"reason"`
	Detail   string `json:"detail"`
	Err      error  `json:"-"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Filename, e.Detail, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// CapacityError reports files dropped because the widget was full
type CapacityError struct {
	MaxFiles int `json:"max_files"`
	Dropped  int `json:"dropped"`
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("maximum of %d files reached, %d dropped", e.MaxFiles, e.Dropped)
}
