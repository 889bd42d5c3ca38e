package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseConfigYAML parses a Config from YAML bytes on top of DefaultConfig and
// validates it. Keys missing from the document keep their default values.
func ParseConfigYAML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ParseConfigYAMLString parses a Config from a YAML string and validates it.
func ParseConfigYAMLString(yamlText string) (*Config, error) {
	return ParseConfigYAML([]byte(yamlText))
}

// ParseClassifierYAML parses a standalone classifier table, as posted to the
// control plane.
func ParseClassifierYAML(data []byte) (*Classifier, error) {
	var c Classifier
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse classifier yaml: %w", err)
	}
	if err := validateClassifier(&c); err != nil {
		return nil, fmt.Errorf("invalid classifier: %w", err)
	}
	return &c, nil
}
