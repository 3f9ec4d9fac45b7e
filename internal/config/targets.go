package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// TargetsFile is the on-disk target list:
//
//	targets = ["alice", "bob"]
type TargetsFile struct {
	Targets []string `toml:"targets"`
}

// LoadTargets reads the target list at path. Surrounding whitespace is
// trimmed, blank entries are skipped and duplicates collapse to the first
// occurrence. Name validation is left to the registry.
func LoadTargets(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}

	var file TargetsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse targets file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(file.Targets))
	targets := make([]string, 0, len(file.Targets))
	for _, target := range file.Targets {
		target = strings.TrimSpace(target)
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		targets = append(targets, target)
	}
	return targets, nil
}
