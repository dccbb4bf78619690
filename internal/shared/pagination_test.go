package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPage(t *testing.T) {
	require.Equal(t, Page{Limit: DefaultPageSize}, NewPage(0, -3))
	require.Equal(t, Page{Limit: MaxPageSize, Offset: 10}, NewPage(1000, 10))
	require.Equal(t, Page{Limit: 5, Offset: 2}, NewPage(5, 2))
}

func TestPageSlice(t *testing.T) {
	start, end := NewPage(2, 1).Slice(5)
	require.Equal(t, 1, start)
	require.Equal(t, 3, end)

	start, end = NewPage(10, 8).Slice(5)
	require.Equal(t, 5, start)
	require.Equal(t, 5, end)
}
