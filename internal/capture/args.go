package capture

import (
	"fmt"

	"github.com/google/shlex"
)

// SplitArgs splits a configured argument string into words using POSIX
// shell quoting. Nothing is expanded. Blank input yields nil.
func SplitArgs(s string) ([]string, error) {
	args, err := shlex.Split(s)
	if err != nil {
		return nil, fmt.Errorf("split arguments %q: %w", s, err)
	}
	if len(args) == 0 {
		return nil, nil
	}
	return args, nil
}
