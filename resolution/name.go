package resolution

import (
	"fmt"
	"strings"

	"github.com/elba-build/elba/errkind"
)

// Name is a group/name package identifier, e.g. "terminator/one".
type Name struct {
	Group string
	Name  string
}

// ParseName parses a "group/name" string.
func ParseName(s string) (Name, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Name{}, errkind.Newf(errkind.InvalidManifest, "invalid package name %q: must be group/name", s)
	}
	return Name{Group: parts[0], Name: parts[1]}, nil
}

func (n Name) String() string {
	return fmt.Sprintf("%s/%s", n.Group, n.Name)
}
