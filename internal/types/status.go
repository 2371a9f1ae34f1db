// Package types implements the data structures shared by the trusted storage
// engine: status codes, file identifiers, flags and the on-flash layout
// constants.
package types

import (
	"errors"
	"fmt"
)

// Status is a storage status code. The values follow the PSA status
// taxonomy so they can cross the client boundary unchanged.
type Status int32

// Status values returned across the service boundary.
const (
	StatusSuccess               Status = 0
	StatusProgrammerError       Status = -129
	StatusGenericError          Status = -132
	StatusNotPermitted          Status = -133
	StatusInvalidArgument       Status = -135
	StatusBufferTooSmall        Status = -138
	StatusDoesNotExist          Status = -140
	StatusInsufficientStorage   Status = -142
	StatusHardwareFailure       Status = -147
	StatusAuthenticationFailure Status = -149
	StatusStorageCorrupt        Status = -152
)

// Sentinel errors. Lower layers wrap these with context; callers match them
// with errors.Is.
var (
	ErrProgrammerError       error = StatusProgrammerError
	ErrGenericError          error = StatusGenericError
	ErrNotPermitted          error = StatusNotPermitted
	ErrInvalidArgument       error = StatusInvalidArgument
	ErrBufferTooSmall        error = StatusBufferTooSmall
	ErrDoesNotExist          error = StatusDoesNotExist
	ErrInsufficientStorage   error = StatusInsufficientStorage
	ErrHardwareFailure       error = StatusHardwareFailure
	ErrAuthenticationFailure error = StatusAuthenticationFailure
	ErrStorageCorrupt        error = StatusStorageCorrupt
)

var statusNames = map[Status]string{
	StatusSuccess:               "success",
	StatusProgrammerError:       "programmer error",
	StatusGenericError:          "generic error",
	StatusNotPermitted:          "not permitted",
	StatusInvalidArgument:       "invalid argument",
	StatusBufferTooSmall:        "buffer too small",
	StatusDoesNotExist:          "does not exist",
	StatusInsufficientStorage:   "insufficient storage",
	StatusHardwareFailure:       "hardware failure",
	StatusAuthenticationFailure: "authentication failure",
	StatusStorageCorrupt:        "storage corrupt",
}

// Error implements the error interface.
func (s Status) Error() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status %d", int32(s))
}

// String returns the status name.
func (s Status) String() string {
	return s.Error()
}

// StatusOf extracts the status carried by err. A nil error is success and an
// error outside the taxonomy is reported as a generic error, so platform codes
// never leak to clients.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	return StatusGenericError
}
