// Package version provides version parsing, validation, and release tag matching.
package version

import (
	"cmp"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// SemverRegex validates strict semantic version strings.
var SemverRegex = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(-([a-zA-Z0-9]+(\.[a-zA-Z0-9]+)*))?(\+([a-zA-Z0-9]+(\.[a-zA-Z0-9]+)*))?$`)

// ReleaseTagRegex matches tags that open the publish gate: three dotted
// numeric components optionally followed by any suffix (so both "1.2.3" and
// suffixed forms like "1.2.3rc1" or "1.2.3-beta.2" qualify).
var ReleaseTagRegex = regexp.MustCompile(`^\d+\.\d+\.\d+.*$`)

// Semver represents a parsed semantic version.
type Semver struct {
	Major      int
	Minor      int
	Patch      int
	Prerelease string
	Build      string
}

// IsReleaseTag reports whether tag matches the release pattern that gates
// publishing.
func IsReleaseTag(tag string) bool {
	return ReleaseTagRegex.MatchString(tag)
}

// Read reads a version from a file and validates it.
// Returns the underlying os error (wrapped) if the file cannot be read,
// allowing callers to use errors.Is(err, os.ErrNotExist) to distinguish
// missing files from other errors.
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("version source file not found: %w", err)
	}

	version := strings.TrimSpace(string(data))
	if version == "" {
		return "", fmt.Errorf("version source file is empty: %s", path)
	}

	if err := Validate(version); err != nil {
		return "", fmt.Errorf("invalid version in %s: %w", path, err)
	}

	return version, nil
}

// Validate checks if a version string is valid semver.
func Validate(version string) error {
	if !SemverRegex.MatchString(version) {
		return fmt.Errorf("invalid semver format: %q", version)
	}
	return nil
}

// Parse parses a semantic version string.
func Parse(version string) (*Semver, error) {
	match := SemverRegex.FindStringSubmatch(version)
	if match == nil {
		return nil, fmt.Errorf("invalid semver format: %q", version)
	}

	// Errors ignored: regex guarantees these capture groups contain only digits
	major, _ := strconv.Atoi(match[1])
	minor, _ := strconv.Atoi(match[2])
	patch, _ := strconv.Atoi(match[3])

	return &Semver{
		Major:      major,
		Minor:      minor,
		Patch:      patch,
		Prerelease: match[5], // Group 5 is prerelease without the dash
		Build:      match[8], // Group 8 is build without the plus
	}, nil
}

// String returns the semver string representation.
func (s *Semver) String() string {
	result := fmt.Sprintf("%d.%d.%d", s.Major, s.Minor, s.Patch)
	if s.Prerelease != "" {
		result += "-" + s.Prerelease
	}
	if s.Build != "" {
		result += "+" + s.Build
	}
	return result
}

// Compare compares two semver strings.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}

	if va.Major != vb.Major {
		return cmp.Compare(va.Major, vb.Major), nil
	}
	if va.Minor != vb.Minor {
		return cmp.Compare(va.Minor, vb.Minor), nil
	}
	if va.Patch != vb.Patch {
		return cmp.Compare(va.Patch, vb.Patch), nil
	}

	// Prerelease comparison per SemVer §9:
	// - Version without prerelease is greater than version with prerelease
	// - If both have prereleases, compare them per §11
	// - If both empty (or equal), fall through to return 0
	if va.Prerelease == "" && vb.Prerelease != "" {
		return 1, nil
	}
	if va.Prerelease != "" && vb.Prerelease == "" {
		return -1, nil
	}
	if va.Prerelease != vb.Prerelease {
		return comparePrerelease(va.Prerelease, vb.Prerelease), nil
	}

	return 0, nil
}

// comparePrerelease compares prerelease strings per SemVer §11:
// - Split by dots into identifiers
// - Numeric identifiers compare as integers
// - Alphanumeric identifiers compare as strings
// - Numeric identifiers have lower precedence than alphanumeric
// - Fewer identifiers has lower precedence if all preceding are equal
func comparePrerelease(a, b string) int {
	partsA := strings.Split(a, ".")
	partsB := strings.Split(b, ".")

	minLen := len(partsA)
	if len(partsB) < minLen {
		minLen = len(partsB)
	}

	for i := 0; i < minLen; i++ {
		cmp := compareIdentifier(partsA[i], partsB[i])
		if cmp != 0 {
			return cmp
		}
	}

	// Longer prerelease has higher precedence if all shared identifiers are equal
	return cmp.Compare(len(partsA), len(partsB))
}

// compareIdentifier compares two prerelease identifiers per SemVer §11.
func compareIdentifier(a, b string) int {
	aNum, aIsNum := parseNumeric(a)
	bNum, bIsNum := parseNumeric(b)

	// Both numeric: compare as integers
	if aIsNum && bIsNum {
		return cmp.Compare(aNum, bNum)
	}
	// Numeric has lower precedence than alphanumeric
	if aIsNum {
		return -1
	}
	if bIsNum {
		return 1
	}
	// Both alphanumeric: string comparison
	return strings.Compare(a, b)
}

// parseNumeric attempts to parse a string as a non-negative integer.
// Returns (value, true) if successful, (0, false) otherwise.
func parseNumeric(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	// Reject leading zeros (except "0" itself) per SemVer spec
	if len(s) > 1 && s[0] == '0' {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
