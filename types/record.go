package types

import "strings"

// Record is one scanned row keyed by column label
type Record map[string]any

// Lookup returns the value of a column, matching case-insensitively when the
// driver reports labels in a different case than configured.
func (r Record) Lookup(column string) (any, bool) {
	if v, found := r[column]; found {
		return v, true
	}
	for k, v := range r {
		if strings.EqualFold(k, column) {
			return v, true
		}
	}
	return nil, false
}
