package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSortable(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 10, time.UTC)

	got := FormatSortable(ts)
	assert.Equal(t, "2026-03-04T05:06:07.000000010Z", got)
	assert.Len(t, FormatSortable(ts.Truncate(time.Second)), len(got))

	parsed, err := time.Parse(SortableLayout, got)
	require.NoError(t, err)
	assert.True(t, ts.Equal(parsed))
}
