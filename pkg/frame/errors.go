package frame

import "errors"

var (
	errShortBitVector = errors.New("frame: hex string too short for requested bit count")
	errBadHexDigit    = errors.New("frame: invalid hex digit")
)
