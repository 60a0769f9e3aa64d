// Package radioerr carries the stable numeric codes returned to clients
// when a submission, removal or privileged action is rejected.
package radioerr

import (
	"errors"
	"fmt"
)

// Rejection codes. These are part of the client contract and must not
// be renumbered.
const (
	CodeNoTrackPlaying  = 404
	CodeRecentlyPlayed  = 609
	CodeNotAuthorized   = 701
	CodePositionMissing = 702
	CodeNowPlaying      = 706
	CodeAlreadyNext     = 707
	CodeAlreadyQueued   = 708
	CodeBlocked         = 709
	CodeInvalidTrackID  = 801
	CodeAlreadyBlocked  = 802
	CodeNotBlocked      = 803
	CodeIndexMissing    = 804
	CodeDownloadBusy    = 805
	CodeNotPrivileged   = 806
)

// Error is a rejection with a stable client-visible code.
type Error struct {
	ErrCode int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.ErrCode)
}

// E builds a coded error.
func E(code int, message string) *Error {
	return &Error{ErrCode: code, Message: message}
}

// Ef builds a coded error with a formatted message.
func Ef(code int, format string, args ...interface{}) *Error {
	return &Error{ErrCode: code, Message: fmt.Sprintf(format, args...)}
}

// Code extracts the rejection code from an error, unwrapping as needed,
// or 0 when the error carries none.
func Code(err error) int {
	var re *Error
	if errors.As(err, &re) {
		return re.ErrCode
	}
	return 0
}

// Is lets errors.Is match two coded errors by code.
func (e *Error) Is(target error) bool {
	if te, ok := target.(*Error); ok {
		return te.ErrCode == e.ErrCode
	}
	return false
}
