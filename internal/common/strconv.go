package common

import (
	"strconv"
	"strings"
)

// AtoiDefault parses a query or env integer, returning def when value is
// blank or not a number.
func AtoiDefault(value string, def int) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	if parsed, err := strconv.Atoi(value); err == nil {
		return parsed
	}
	return def
}
