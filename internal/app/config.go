package app

import (
	"errors"
	"fmt"

	"github.com/saikuru0/csvita"
)

// Config holds everything a single run needs. It is built once by NewConfig
// and never modified afterwards.
type Config struct {
	InputPath  string
	OutputPath string

	InputDelimiter  byte
	OutputDelimiter byte

	Escape      bool // backslash-escape quotes instead of doubling them
	Flexible    bool // accept records of any width
	SkipEmpty   bool
	SkipNumeric bool
	UseCRLF     bool

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg, filling in defaults for zero delimiters and
// logging options, and returns a copy.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.InputPath == "" {
		return nil, errors.New("InputPath is a required configuration field and cannot be empty")
	}
	if cfg.OutputPath == "" {
		return nil, errors.New("OutputPath is a required configuration field and cannot be empty")
	}
	if cfg.InputDelimiter == 0 {
		cfg.InputDelimiter = ','
	}
	if cfg.OutputDelimiter == 0 {
		cfg.OutputDelimiter = ','
	}
	if err := ValidateDelimiter(cfg.InputDelimiter); err != nil {
		return nil, fmt.Errorf("input delimiter: %w", err)
	}
	if err := ValidateDelimiter(cfg.OutputDelimiter); err != nil {
		return nil, fmt.Errorf("output delimiter: %w", err)
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}

	return &cfg, nil
}

// ValidateDelimiter rejects bytes that cannot separate fields unambiguously.
func ValidateDelimiter(d byte) error {
	switch {
	case d == '"':
		return errors.New("cannot be the quote character")
	case d == '\r' || d == '\n':
		return errors.New("cannot be a line terminator")
	case d >= 0x80:
		return errors.New("must be a single-byte character")
	}
	return nil
}

// Policy returns the field policy described by the configuration.
func (c *Config) Policy() csvita.Policy {
	return csvita.Policy{
		Escape:      c.Escape,
		SkipEmpty:   c.SkipEmpty,
		SkipNumeric: c.SkipNumeric,
	}
}
