package config

import "errors"

var (
	// ErrInvalidConfig wraps validation failures, including an unknown timezone.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrLoadConfig wraps failures reading the YAML file or the environment.
	ErrLoadConfig = errors.New("load configuration")
)
