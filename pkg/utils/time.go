package utils

import "time"

// SortableLayout is RFC3339 in UTC with a fixed nine digit fraction, so
// encoded timestamps order lexicographically the same as in time.
const SortableLayout = "2006-01-02T15:04:05.000000000Z"

// FormatSortable encodes t for use inside a sort key
func FormatSortable(t time.Time) string {
	return t.UTC().Format(SortableLayout)
}
