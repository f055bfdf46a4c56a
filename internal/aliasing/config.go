// Package aliasing resolves a raw domain identifier - as emitted differently
// by different agent/tool integrations for what is really the same
// underlying domain - to one canonical name, so patternstore.DomainCandidate
// entries for the same domain collapse into one instead of fragmenting by
// spelling. Aliases are configured, not inferred: an operator lists known
// synonyms in a YAML file and this package loads and applies them.
package aliasing

import (
	"errors"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/onex-learning/patternd/internal/config"
)

// Config holds the domain-alias table loaded from an aliases file.
type Config struct {
	//nolint:tagliatelle // snake_case is intentional for YAML config files
	NamespaceAliases map[string]string `yaml:"namespace_aliases"`
}

const (
	// DefaultConfigPath is the default location for the domain-aliases file.
	DefaultConfigPath = ".patterngate-aliases.yaml"

	// ConfigPathEnvVar is the environment variable name for a custom path.
	ConfigPathEnvVar = "PATTERNGATE_ALIASES_PATH"
)

// LoadConfig loads the alias table from a YAML file at path.
//
// Behavior:
//   - Returns empty config (not error) if the file doesn't exist - aliases
//     are optional.
//   - Returns empty config + logs a warning if the YAML is invalid.
//   - Returns the populated config on success.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		NamespaceAliases: map[string]string{},
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("Aliases file not found, continuing without aliases",
				slog.String("path", path))

			return cfg, nil
		}

		slog.Warn("Failed to read aliases file, continuing without aliases",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return cfg, nil
	}

	if len(data) == 0 {
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		slog.Warn("Failed to parse aliases file, continuing without aliases",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return &Config{NamespaceAliases: map[string]string{}}, nil
	}

	if cfg.NamespaceAliases == nil {
		cfg.NamespaceAliases = map[string]string{}
	}

	return cfg, nil
}

// LoadConfigFromEnv loads the alias table from the path named by
// ConfigPathEnvVar, falling back to DefaultConfigPath in the current
// directory if unset.
func LoadConfigFromEnv() (*Config, error) {
	path := config.GetEnvStr(ConfigPathEnvVar, DefaultConfigPath)

	return LoadConfig(path)
}
