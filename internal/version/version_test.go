package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvedPrefersLdflags(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "v9.9.9"
	assert.Equal(t, "v9.9.9", Resolved())
	assert.Contains(t, String(), "sitebuilder v9.9.9")
}

func TestBuildInfoInitialized(t *testing.T) {
	assert.NotEmpty(t, BuildTime)
	assert.NotEmpty(t, GitCommit)
	assert.NotEmpty(t, Resolved())
}
