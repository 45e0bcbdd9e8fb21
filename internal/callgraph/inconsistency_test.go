package callgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInconsistentRequiresDifferingDepths(t *testing.T) {
	paths := []Path{pathOf(0, 1), pathOf(10, 2, 1)}
	assert.True(t, Inconsistent(paths))
}

func TestConsistentWhenAllDepthsMatch(t *testing.T) {
	paths := []Path{pathOf(0, 1), pathOf(10, 1)}
	assert.False(t, Inconsistent(paths))
}

func TestConsistentSingleDepthEvenWithMultiplePaths(t *testing.T) {
	paths := []Path{pathOf(0, 1), pathOf(10, 1)}
	assert.False(t, Inconsistent(paths))
}

func TestNotInconsistentWhenSharingAnIntermediate(t *testing.T) {
	// Both paths share node 5 as an intermediate hop before reaching 1,
	// at different depths purely because of where they join node 5's
	// subtree -- the uniqueness guard should reject this as a false
	// positive.
	paths := []Path{pathOf(0, 5, 1), pathOf(9, 8, 5, 1)}
	assert.False(t, Inconsistent(paths))
}

func TestPartitionSplitsByInconsistency(t *testing.T) {
	depths := map[Key][]Path{
		node(1).Key(): {pathOf(0, 1), pathOf(10, 2, 1)},
		node(9).Key(): {pathOf(0, 9)},
	}
	ok, problems := Partition(depths)
	assert.Contains(t, problems, node(1).Key())
	assert.Contains(t, ok, node(9).Key())
	assert.NotContains(t, ok, node(1).Key())
}
