package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeOverrideLaw(t *testing.T) {
	a := Tree{"x": "left", "keep": 1.0}
	b := Tree{"x": "right"}

	got := Merge(a, b)
	assert.Equal(t, "right", got["x"])
	assert.Equal(t, 1.0, got["keep"])
}

func TestMergeRecursesIntoSubtrees(t *testing.T) {
	a := Tree{"files": Tree{"r1.pdf": Tree{"path": "files", "mtime": 1.0}, "path": "", "mtime": 5.0}}
	b := Tree{"files": Tree{"r2.pdf": Tree{"path": "files", "mtime": 2.0}, "path": "", "mtime": 7.0}}

	got := Merge(a, b)
	files := got.Sub("files")
	assert.Contains(t, files, "r1.pdf")
	assert.Contains(t, files, "r2.pdf")
	mtime, ok := files.MTime()
	assert.True(t, ok)
	assert.Equal(t, 7.0, mtime)
}

func TestMergeTreeReplacedByLeaf(t *testing.T) {
	a := Tree{"x": Tree{"child": "v"}}
	b := Tree{"x": "leaf"}
	assert.Equal(t, "leaf", Merge(a, b)["x"])

	// And the other way around.
	assert.Equal(t, Tree{"child": "v"}, Merge(b, a)["x"])
}

func TestMergeAcceptsDecodedMaps(t *testing.T) {
	a := Tree{"d": map[string]any{"a": 1.0}}
	b := Tree{"d": Tree{"b": 2.0}}
	assert.Equal(t, Tree{"a": 1.0, "b": 2.0}, Merge(a, b)["d"])
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	a := Tree{"d": Tree{"a": 1.0}}
	b := Tree{"d": Tree{"b": 2.0}}
	got := Merge(a, b)
	got.Sub("d")["c"] = 3.0

	assert.Equal(t, Tree{"d": Tree{"a": 1.0}}, a)
	assert.Equal(t, Tree{"d": Tree{"b": 2.0}}, b)
}

func TestMergeAllFoldsLeftToRight(t *testing.T) {
	got := MergeAll(
		Tree{"x": "first", "a": "a"},
		Tree{"x": "second", "b": "b"},
		Tree{"x": "third"},
	)
	assert.Equal(t, Tree{"x": "third", "a": "a", "b": "b"}, got)
	assert.Equal(t, Tree{}, MergeAll())
}
