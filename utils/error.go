package utils

import (
	"context"
	"errors"
)

func ErrorIsAnyOf(err error, targets... error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// IsContextDone reports whether err was caused by a canceled or expired context.
func IsContextDone(err error) bool {
	return ErrorIsAnyOf(err, context.Canceled, context.DeadlineExceeded)
}
