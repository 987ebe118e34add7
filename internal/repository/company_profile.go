package repository

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadCompanyProfile reads a YAML company profile. Keys missing from the file
// keep their defaults. An empty path returns the defaults.
func LoadCompanyProfile(path string) (CompanyProfile, error) {
	profile := DefaultCompanyProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("failed to read company profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("failed to parse company profile %s: %w", path, err)
	}
	return profile, nil
}
