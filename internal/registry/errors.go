package registry

import "errors"

var (
	ErrNotInitialized  = errors.New("registry was not initialized")
	ErrNormalizeFailed = errors.New("clock normalization failed")
	ErrCollectFailed   = errors.New("collection failed")
)
