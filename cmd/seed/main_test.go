package main

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_UniqueTitleAuthorPairs(t *testing.T) {
	rows := generate(rand.New(rand.NewSource(1)), 40, 500)
	require.Len(t, rows, 500)

	seen := make(map[[2]string]bool, len(rows))
	for _, row := range rows {
		require.Len(t, row, 3)
		key := [2]string{row[0].(string), row[1].(string)}
		assert.False(t, seen[key], "duplicate pair %v", key)
		seen[key] = true

		year := row[2].(int)
		assert.GreaterOrEqual(t, year, 1950)
		assert.Less(t, year, 2025)
	}
	assert.Contains(t, rows[0][0], "Book Title 41 - ")
}
