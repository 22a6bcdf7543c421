package enums

import (
	"fmt"
	"slices"
	"strings"
)

// parseMember matches raw against set after trimming surrounding space.
func parseMember[T ~string](set []T, kind, raw string) (T, error) {
	if i := slices.Index(set, T(strings.TrimSpace(raw))); i >= 0 {
		return set[i], nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
