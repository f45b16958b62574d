package types

import (
	"regexp"
	"strings"
	"testing"
)

func TestVersionConstants(t *testing.T) {
	if !regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`).MatchString(Version) {
		t.Errorf("Version %q is not semver", Version)
	}
	if ContractVersion != Version {
		t.Errorf("ContractVersion %q != Version %q", ContractVersion, Version)
	}
	if !strings.HasPrefix(StreamPath, "/") || strings.HasSuffix(StreamPath, "/") {
		t.Errorf("StreamPath %q must be rooted with no trailing slash", StreamPath)
	}
	if EOSSentinel != "eos" {
		t.Errorf("EOSSentinel = %q, want eos", EOSSentinel)
	}
}
