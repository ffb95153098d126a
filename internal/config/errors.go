package config

import "errors"

var (
	ErrReadingConfigFile    = errors.New("failed to read config file")
	ErrUnmarshallingConfig  = errors.New("failed to unmarshal config")
	ErrConfigFileMissing    = errors.New("config file not found")
	ErrInvalidWorldSize     = errors.New("comm size must be at least 1")
	ErrInvalidRank          = errors.New("comm rank must be in [0, size)")
	ErrEmptyCoordinatorAddr = errors.New("comm coordinatorAddr cannot be empty in a multi-rank run")
	ErrEmptyKafkaBrokers    = errors.New("kafka brokers list cannot be empty when publishing is enabled")
	ErrEmptyKafkaTopic      = errors.New("kafka topic cannot be empty when publishing is enabled")
)
