package config

import (
	"fmt"
	"os"

	"github.com/use-agent/opinionprobe/models"
	"gopkg.in/yaml.v3"
)

// targetsFile is the structure of the optional YAML target list.
type targetsFile struct {
	Targets []models.ConfigurationDescriptor `yaml:"targets"`
}

// LoadTargets returns the configuration list for a run. An empty path yields
// the built-in defaults. A file that exists but cannot be parsed, or that
// contains an invalid descriptor, is an error.
func LoadTargets(path string) ([]models.ConfigurationDescriptor, error) {
	if path == "" {
		return models.DefaultTargets(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}

	var f targetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse targets file: %w", err)
	}
	if len(f.Targets) == 0 {
		return nil, fmt.Errorf("targets file %s lists no targets", path)
	}

	seen := make(map[string]struct{}, len(f.Targets))
	for _, t := range f.Targets {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[t.Label]; dup {
			return nil, fmt.Errorf("duplicate target label %q", t.Label)
		}
		seen[t.Label] = struct{}{}
	}
	return f.Targets, nil
}

// SelectTargets keeps the targets whose label is listed, preserving the
// original order. An empty label list selects everything.
func SelectTargets(all []models.ConfigurationDescriptor, labels []string) ([]models.ConfigurationDescriptor, error) {
	if len(labels) == 0 {
		return all, nil
	}
	want := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		want[l] = struct{}{}
	}

	var out []models.ConfigurationDescriptor
	for _, t := range all {
		if _, ok := want[t.Label]; ok {
			out = append(out, t)
			delete(want, t.Label)
		}
	}
	for _, l := range labels {
		if _, missing := want[l]; missing {
			return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
				fmt.Sprintf("unknown target label %q", l), nil)
		}
	}
	return out, nil
}
