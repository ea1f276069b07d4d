// Package config loads the optional boot-time YAML file referenced by
// CONFIG_FILE. Everything in it can also come from environment variables;
// the file exists for the pieces that are awkward as env strings, namely
// the credential set, the critical-region allowlist and score overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ghifiardi/gatra-world-monitor/pkg/auth"
)

// File is the on-disk shape. All sections are optional.
type File struct {
	Credentials    []auth.Credential  `yaml:"credentials"`
	Allowlist      []string           `yaml:"allowlist"`
	ScoreOverrides map[string]float64 `yaml:"score_overrides"`
}

// Load reads and parses the YAML file at path. An empty path returns an
// empty File so callers can merge unconditionally.
func Load(path string) (File, error) {
	var f File
	path = strings.TrimSpace(path)
	if path == "" {
		return f, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return f, f.validate(path)
}

func (f File) validate(path string) error {
	for i, c := range f.Credentials {
		if strings.TrimSpace(c.Key) == "" {
			return fmt.Errorf("config: %s: credentials[%d] has empty key", path, i)
		}
	}
	for code, score := range f.ScoreOverrides {
		if score < 0 {
			return fmt.Errorf("config: %s: score override for %q is negative", path, code)
		}
	}
	return nil
}

// MergeAllowlist combines the file allowlist with a comma-separated env
// value, trimming blanks. Either side may be empty.
func MergeAllowlist(fromFile []string, fromEnv string) []string {
	out := make([]string, 0, len(fromFile))
	for _, v := range fromFile {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	for _, v := range strings.Split(fromEnv, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
