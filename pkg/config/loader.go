package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return fmt.Errorf("invalid log_format: %s (must be json or text)", cfg.LogFormat)
	}

	if err := validateSearch(&cfg.Search); err != nil {
		return fmt.Errorf("search validation failed: %w", err)
	}
	if err := validateRestart(&cfg.Restart); err != nil {
		return fmt.Errorf("restart validation failed: %w", err)
	}
	if cfg.Observer.Enabled {
		if err := positiveDuration("poll_interval", cfg.Observer.PollInterval); err != nil {
			return fmt.Errorf("observer validation failed: %w", err)
		}
	}
	if err := validateForm(&cfg.Form); err != nil {
		return fmt.Errorf("form validation failed: %w", err)
	}
	if err := validateClassifier(&cfg.Classifier); err != nil {
		return fmt.Errorf("classifier validation failed: %w", err)
	}
	if err := validateMeasures(cfg.Measures); err != nil {
		return fmt.Errorf("measures validation failed: %w", err)
	}
	if cfg.Notify != nil {
		if err := validateNotify(cfg.Notify); err != nil {
			return fmt.Errorf("notify validation failed: %w", err)
		}
	}

	return nil
}

// validateSearch validates the search settings
func validateSearch(s *Search) error {
	if s.Objective != "eps" && s.Objective != "composite" {
		return fmt.Errorf("objective must be 'eps' or 'composite', got %s", s.Objective)
	}
	if err := ValidateSteps(s.Steps); err != nil {
		return err
	}
	if s.Precision < 0 || s.Precision > 6 {
		return fmt.Errorf("precision must be between 0 and 6, got %d", s.Precision)
	}
	if s.MaxPasses < 0 {
		return fmt.Errorf("max_passes cannot be negative")
	}
	for name, value := range map[string]string{
		"settle_delay":     s.SettleDelay,
		"inter_pass_delay": s.InterPassDelay,
	} {
		if err := nonNegativeDuration(name, value); err != nil {
			return err
		}
	}
	return positiveDuration("stagnation_timeout", s.StagnationTimeout)
}

// ValidateSteps checks that a step schedule is strictly decreasing, positive
// and ends at 1.
func ValidateSteps(steps []float64) error {
	if len(steps) == 0 {
		return fmt.Errorf("steps must not be empty")
	}
	for i, step := range steps {
		if step <= 0 {
			return fmt.Errorf("step %d must be positive, got %g", i, step)
		}
		if i > 0 && step >= steps[i-1] {
			return fmt.Errorf("steps must be strictly decreasing: %g follows %g", step, steps[i-1])
		}
	}
	if steps[len(steps)-1] != 1 {
		return fmt.Errorf("steps must end at 1, got %g", steps[len(steps)-1])
	}
	return nil
}

// validateRestart validates the restart settings
func validateRestart(r *Restart) error {
	if r.Strategy != "random" && r.Strategy != "swarm" {
		return fmt.Errorf("strategy must be 'random' or 'swarm', got %s", r.Strategy)
	}
	if r.Attempts <= 0 {
		return fmt.Errorf("attempts must be positive")
	}
	if r.Strategy == "swarm" && r.SwarmPopulation <= 0 {
		return fmt.Errorf("swarm_population must be positive")
	}
	return nonNegativeDuration("settle_delay", r.SettleDelay)
}

// validateForm validates the form settings
func validateForm(f *Form) error {
	switch f.Driver {
	case "sim":
	case "browser":
		if f.URL == "" {
			return fmt.Errorf("url is required for the browser driver")
		}
	default:
		return fmt.Errorf("driver must be 'sim' or 'browser', got %s", f.Driver)
	}
	if strings.TrimSpace(f.InputClass) == "" {
		return fmt.Errorf("input_class cannot be empty")
	}
	if len(f.RecalculateLabels) == 0 {
		return fmt.Errorf("at least one recalculate label must be defined")
	}
	return nil
}

// validateClassifier validates the label table
func validateClassifier(c *Classifier) error {
	for i, rule := range c.Rules {
		if strings.TrimSpace(rule.Pattern) == "" {
			return fmt.Errorf("rule %d: pattern cannot be empty", i)
		}
		if _, ok := c.Profiles[rule.Category]; !ok {
			return fmt.Errorf("rule %d: unknown category %s", i, rule.Category)
		}
	}
	for name, p := range c.Profiles {
		if err := validateRange(p.Min, p.Max, p.Sweep); err != nil {
			return fmt.Errorf("profile %s: %w", name, err)
		}
	}
	labels := make(map[string]bool)
	for _, o := range c.Overrides {
		if o.Label == "" {
			return fmt.Errorf("override label cannot be empty")
		}
		if labels[o.Label] {
			return fmt.Errorf("duplicate override label: %s", o.Label)
		}
		labels[o.Label] = true
		if err := validateRange(o.Min, o.Max, o.Sweep); err != nil {
			return fmt.Errorf("override %s: %w", o.Label, err)
		}
	}
	return nil
}

func validateRange(min, max float64, sweep []float64) error {
	if min > max {
		return fmt.Errorf("min %g exceeds max %g", min, max)
	}
	for _, v := range sweep {
		if v < min || v > max {
			return fmt.Errorf("sweep value %g outside [%g, %g]", v, min, max)
		}
	}
	return nil
}

func validateMeasures(measures []Measure) error {
	hasEPS := false
	for i, m := range measures {
		if strings.TrimSpace(m.Pattern) == "" || m.Key == "" {
			return fmt.Errorf("measure %d: pattern and key are required", i)
		}
		if m.Key == "eps" {
			hasEPS = true
		}
	}
	if len(measures) > 0 && !hasEPS {
		return fmt.Errorf("measures must map the eps objective")
	}
	return nil
}

// validateNotify validates webhook settings
func validateNotify(n *Notify) error {
	if n.WebhookURL == "" {
		return fmt.Errorf("webhook_url cannot be empty")
	}
	if n.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	validBackoff := map[string]bool{"": true, "exponential": true, "linear": true, "constant": true}
	if !validBackoff[n.Backoff] {
		return fmt.Errorf("backoff must be 'exponential', 'linear', or 'constant', got %s", n.Backoff)
	}
	if n.BaseMs < 0 || n.MaxMs < 0 {
		return fmt.Errorf("base_ms and max_ms cannot be negative")
	}
	return nil
}

func nonNegativeDuration(name, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if d < 0 {
		return fmt.Errorf("%s cannot be negative", name)
	}
	return nil
}

func positiveDuration(name, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", name)
	}
	return nil
}
