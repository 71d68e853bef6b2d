package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateThresholds(t *testing.T) {
	assert.NoError(t, validateThresholds(nil))
	assert.NoError(t, validateThresholds([]int{100, 250, 500}))

	// Equal consecutive thresholds make a level free.
	assert.Error(t, validateThresholds([]int{100, 100, 500}))
	assert.Error(t, validateThresholds([]int{100, 250, 200}))
	assert.Error(t, validateThresholds([]int{0, 100}))
}

func TestParseLetterScaleOrdersHighestFirst(t *testing.T) {
	cuts, err := parseLetterScale("6:D,9:A,7:C,8:B")
	require.NoError(t, err)
	require.Len(t, cuts, 4)
	assert.Equal(t, 9.0, cuts[0].MinScore)
	assert.Equal(t, "A", cuts[0].Letter)
	assert.Equal(t, 6.0, cuts[3].MinScore)
	assert.Equal(t, "D", cuts[3].Letter)
}
