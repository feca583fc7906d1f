package registry

import (
	"cmp"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidVersion is returned for a version not of the form major.minor.patch.
var ErrInvalidVersion = errors.New("version must be in format 'major.minor.patch'")

// ModelVersion is a semantic version.
type ModelVersion struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses "major.minor.patch" with non-negative integer parts.
func ParseVersion(s string) (ModelVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return ModelVersion{}, fmt.Errorf("%w, got %q", ErrInvalidVersion, s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return ModelVersion{}, fmt.Errorf("%w: parts must be non-negative integers, got %q", ErrInvalidVersion, s)
		}
		nums[i] = n
	}
	return ModelVersion{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// Compare returns -1, 0 or +1 ordering v against o.
func (v ModelVersion) Compare(o ModelVersion) int {
	if c := cmp.Compare(v.Major, o.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Minor, o.Minor); c != 0 {
		return c
	}
	return cmp.Compare(v.Patch, o.Patch)
}

func (v ModelVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
