package imageprocessor

import (
	"errors"
	"strings"
)

// Error kinds. Callers match them with errors.Is.
var (
	ErrMissingInput   = errors.New("missing input")
	ErrInvalidRequest = errors.New("invalid request")
	ErrProvider       = errors.New("provider error")
	ErrNetwork        = errors.New("network error")
	ErrEmptyAsset     = errors.New("empty asset")
	ErrTimeout        = errors.New("timed out waiting for asset")
)

// Stage markers.
var (
	ErrUpload   = errors.New("upload failed")
	ErrDownload = errors.New("download failed")
)

// Error ties a failure to the pipeline stage and kind it belongs to.
type Error struct {
	Stage error
	Kind  error
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, err := range []error{e.Stage, e.Kind, e.Err} {
		if err != nil {
			parts = append(parts, err.Error())
		}
	}
	return strings.Join(parts, ": ")
}

// Unwrap exposes stage, kind and cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := make([]error, 0, 3)
	for _, err := range []error{e.Stage, e.Kind, e.Err} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// UploadError builds an upload-stage failure of the given kind.
func UploadError(kind, cause error) error {
	return &Error{Stage: ErrUpload, Kind: kind, Err: cause}
}

// DownloadError builds a download-stage failure of the given kind.
func DownloadError(kind, cause error) error {
	return &Error{Stage: ErrDownload, Kind: kind, Err: cause}
}
