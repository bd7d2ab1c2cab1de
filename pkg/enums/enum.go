package enums

import (
	"fmt"
	"slices"
	"strings"
)

func oneOf[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

// parse accepts surrounding whitespace and any letter case; stored values are
// always lower snake case.
func parse[T ~string](kind, value string, set []T) (T, error) {
	v := T(strings.ToLower(strings.TrimSpace(value)))
	if oneOf(v, set) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
