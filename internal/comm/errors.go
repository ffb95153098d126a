package comm

import "errors"

var (
	ErrNoRoute       = errors.New("no connection to that rank")
	ErrFrameTooLarge = errors.New("frame exceeds size limit")
	ErrBadHello      = errors.New("malformed hello from peer")
	ErrBadValue      = errors.New("collective value has wrong size")
	ErrClosed        = errors.New("communicator is closed")
)
