package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is the optional console profile: the task context labels offered to
// reviewers and the rate limit applied to mutating routes.
type Profile struct {
	Name         string    `yaml:"name" json:"name"`
	TaskContexts []string  `yaml:"task_contexts" json:"task_contexts"`
	RateLimit    RateLimit `yaml:"rate_limit" json:"rate_limit"`
}

// RateLimit configures the per-client limiter on mutating routes.
type RateLimit struct {
	RequestsPerSecond int `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int `yaml:"burst" json:"burst"`
}

// defaultTaskContexts mirror the categories the coordinator was trained
// against.
var defaultTaskContexts = []string{
	"Business Operations",
	"Financial",
	"Code Deployment",
	"Customer Communication",
	"Data Management",
	"Marketing Campaign",
}

// DefaultProfile is used when no profile file is configured.
func DefaultProfile() *Profile {
	contexts := make([]string, len(defaultTaskContexts))
	copy(contexts, defaultTaskContexts)
	return &Profile{
		Name:         "default",
		TaskContexts: contexts,
		RateLimit:    RateLimit{RequestsPerSecond: 5, Burst: 10},
	}
}

// LoadProfile reads a YAML profile from path. An empty path yields the
// default profile; a missing or invalid file is an error, since an explicitly
// configured profile should never silently fall back.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}

	profile := DefaultProfile()
	if err := yaml.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if len(profile.TaskContexts) == 0 {
		profile.TaskContexts = defaultTaskContexts
	}
	if profile.RateLimit.RequestsPerSecond <= 0 {
		profile.RateLimit.RequestsPerSecond = 5
	}
	if profile.RateLimit.Burst <= 0 {
		profile.RateLimit.Burst = 10
	}
	return profile, nil
}
