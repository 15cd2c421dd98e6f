package mcshell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLimitsPositive(t *testing.T) {
	limits := DefaultLimits()

	assert.Positive(t, limits.MaxStageInputBytes)
	assert.Positive(t, limits.MaxBufferBytes)
	assert.Positive(t, limits.MaxOutputBytes)
	assert.Positive(t, limits.MaxSubprocessWall)
	assert.Positive(t, limits.MaxToolWall)
	assert.Positive(t, limits.MaxForEachItems)
	assert.Positive(t, limits.TerminationGrace)
}
