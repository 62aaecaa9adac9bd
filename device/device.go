package device

import (
	"errors"
)

var (
  ErrInvalidData = errors.New("invalid data")
  ErrCorruptedData = errors.New("corrupted data")
  ErrInvalidAddress = errors.New("invalid device address")
)
