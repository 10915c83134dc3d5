package version

import (
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	if Version == "" {
		t.Error("Version should be non-empty")
	}
	// Health responses and the User-Agent carry the version verbatim.
	if strings.ContainsAny(Version, " \t\n/") {
		t.Errorf("Version %q should be a single token", Version)
	}
}
