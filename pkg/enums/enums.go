// Package enums holds the closed string sets stored in ledger rows.
package enums

import (
	"fmt"
	"slices"
)

// parse matches value exactly against valid. kind names the set in the error.
func parse[T ~string](valid []T, value, kind string) (T, error) {
	if i := slices.Index(valid, T(value)); i >= 0 {
		return valid[i], nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
