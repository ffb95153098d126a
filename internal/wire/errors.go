package wire

import "errors"

var (
	ErrNameTooLong  = errors.New("event name exceeds wire limit")
	ErrLabelTooLong = errors.New("state-change label exceeds wire limit")
	ErrTruncated    = errors.New("message shorter than its declared contents")
	ErrTrailingData = errors.New("message longer than its declared contents")
)
