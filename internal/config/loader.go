package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Z_][A-Z0-9_]*)`)

// Load reads the configuration from a YAML file, applies environment
// variable substitution and defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML data. Fields left unset keep their
// defaults; ${VAR} references are replaced from the environment first.
func Parse(data []byte) (*Config, error) {
	data = substituteEnvVars(data)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// substituteEnvVars replaces ${VAR_NAME} and $VAR_NAME with environment
// values. Unset variables are left as-is so validation can flag them.
func substituteEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := string(match)
		if strings.HasPrefix(name, "${") {
			name = name[2 : len(name)-1]
		} else {
			name = name[1:]
		}
		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		return match
	})
}
