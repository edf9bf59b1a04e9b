package model

import "errors"

// Run-level failures. Only ErrSourceUnavailable and ErrAuthentication abort a
// run; the others are absorbed per record.
var (
	ErrSourceUnavailable = errors.New("due date source unavailable")
	ErrAuthentication    = errors.New("calendar authentication failed")
	ErrDuplicateCheck    = errors.New("duplicate check failed")
	ErrRecordMutation    = errors.New("calendar mutation failed")
	ErrMalformedRecord   = errors.New("malformed due date record")
)

// IsFatal reports whether err must abort the whole run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrSourceUnavailable) || errors.Is(err, ErrAuthentication)
}
