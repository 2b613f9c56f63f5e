package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	oldV, oldSHA := Version, GitSHA
	t.Cleanup(func() { Version, GitSHA = oldV, oldSHA })

	Version, GitSHA = "1.2.3", "abc123"
	s := String()
	if !strings.HasPrefix(s, "1.2.3 (abc123") {
		t.Errorf("String() = %q", s)
	}
}
