package model

import (
	"errors"
)

var (
	ErrEmptyCommand  = errors.New("empty command")
	ErrConfigVersion = errors.New("unsupported config version")
)
