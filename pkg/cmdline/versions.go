package cmdline

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// engineVersions maps the selectable version index to the engine release.
// Index 0 means no version was selected.
var engineVersions = []string{
	"",
	"4.22",
	"4.23",
	"4.24",
	"4.25",
	"4.26",
}

// MaxVersionIndex is the highest selectable engine version index
const MaxVersionIndex = 5

// EngineName returns the release name for a version index, or "Unknown"
func EngineName(index int) string {
	if index <= 0 || index >= len(engineVersions) {
		return "Unknown"
	}
	return engineVersions[index]
}

// VersionIndex resolves a release name such as "4.25" to its index
func VersionIndex(name string) (int, error) {
	want, err := semver.NewVersion(name)
	if err != nil {
		return 0, fmt.Errorf("invalid engine version %q: %w", name, err)
	}
	for i := 1; i < len(engineVersions); i++ {
		v := semver.MustParse(engineVersions[i])
		if v.Major() == want.Major() && v.Minor() == want.Minor() {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unsupported engine version %s", name)
}

// SupportsHTML5 reports whether the release still ships the HTML5 target (before 4.24)
func SupportsHTML5(index int) bool { return index < 3 }

// SupportsConsoles reports whether the console platform flags apply (up to 4.24)
func SupportsConsoles(index int) bool { return index <= 3 }

// SupportsLinuxAArch64 reports whether the LinuxAArch64 target exists (4.24 and later)
func SupportsLinuxAArch64(index int) bool { return index >= 3 }

// SupportsDatasmith reports whether the Datasmith and VS2019 options exist (4.25 and later)
func SupportsDatasmith(index int) bool { return index >= 4 }

// SupportsServerClient reports whether the server, client and HoloLens options exist (4.23 and later)
func SupportsServerClient(index int) bool { return index > 1 }

// altCompilerConstraint is the first release that accepts the VS2019 plugin flag
var altCompilerConstraint = mustConstraint(">= 4.25")

// SupportsAltCompiler reports whether a plugin build for the given engine
// release may request the alternate compiler
func SupportsAltCompiler(engineVersion string) bool {
	v, err := semver.NewVersion(engineVersion)
	if err != nil {
		return false
	}
	return altCompilerConstraint.Check(v)
}

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}
