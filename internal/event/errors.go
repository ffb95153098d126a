package event

import "errors"

var (
	ErrOriginAfterInit   = errors.New("normalization origin is later than this rank's initialization")
	ErrAlreadyNormalized = errors.New("state-change timestamp became non-positive, normalize applied twice?")
)
