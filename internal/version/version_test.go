package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringShortCommit(t *testing.T) {
	oldVersion, oldCommit, oldDate := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = oldVersion, oldCommit, oldDate })

	Version, Commit, Date = "1.2.3", "abc", "2026-01-01T00:00:00Z"
	s := String()
	assert.True(t, strings.HasPrefix(s, "forge version 1.2.3 (commit: abc, built: 2026-01-01T00:00:00Z"), s)
	assert.Equal(t, "1.2.3", Short())

	Commit = "0123456789abcdef"
	assert.Contains(t, String(), "commit: 01234567,")
}

func TestStringWithoutBuildInfo(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	Version, Commit = "0.1.0", "unknown"
	assert.True(t, strings.HasPrefix(String(), "forge version 0.1.0 ("))
}
