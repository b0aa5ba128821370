package utils

import (
	"strconv"
)

// ParseID parses a positive numeric route id.
func ParseID(s string) (uint, bool) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// ParseBool accepts the strconv spellings ("true", "1", "t", ...); anything
// else, including the empty string, is false.
func ParseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
