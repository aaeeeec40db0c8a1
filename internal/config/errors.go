package config

import "errors"

var (
	// ErrInvalidConfig is wrapped by every validation failure.
	ErrInvalidConfig = errors.New("invalid shortlist config")
	// ErrLoadConfig is wrapped when a config source cannot be read.
	ErrLoadConfig = errors.New("load shortlist config")
)
