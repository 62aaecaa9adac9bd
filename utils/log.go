package utils

import (
	"fmt"

	"github.com/rs/zerolog"
)

func ToZeroLogArray[T fmt.Stringer](arr []T) (ret *zerolog.Array) {
	ret = zerolog.Arr()

	for _, elem := range arr {
		ret = ret.Str(elem.String())
	}

	return ret
}

// Same as ToZeroLogArray, but for values formatted with a printf verb (e.g. "%02x").
func ToZeroLogArrayf[T any](format string, arr []T) (ret *zerolog.Array) {
	ret = zerolog.Arr()

	for _, elem := range arr {
		ret = ret.Str(fmt.Sprintf(format, elem))
	}

	return ret
}
