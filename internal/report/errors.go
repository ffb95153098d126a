package report

import "errors"

var (
	ErrEncodingRunLog = errors.New("failed to encode run log")
	ErrWritingRunLog  = errors.New("failed to write run log")
	ErrPublishFailed  = errors.New("failed to publish run log")
)
