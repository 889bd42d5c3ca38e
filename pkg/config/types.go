package config

import "time"

// Config represents the optimizer daemon configuration
type Config struct {
	LogLevel   string     `yaml:"log_level"`
	LogFormat  string     `yaml:"log_format"` // json or text
	Search     Search     `yaml:"search"`
	Restart    Restart    `yaml:"restart"`
	Observer   Observer   `yaml:"observer"`
	Form       Form       `yaml:"form"`
	Classifier Classifier `yaml:"classifier"`
	Measures   []Measure  `yaml:"measures,omitempty"`
	Storage    Storage    `yaml:"storage"`
	Server     Server     `yaml:"server"`
	Notify     *Notify    `yaml:"notify,omitempty"`
}

// Search configures the coordinator and the per-field local search
type Search struct {
	Objective         string    `yaml:"objective"` // eps or composite
	Steps             []float64 `yaml:"steps"`
	BroadSweep        bool      `yaml:"broad_sweep"`
	OptimizeChoices   bool      `yaml:"optimize_choices"`
	Precision         int       `yaml:"precision"`
	SettleDelay       string    `yaml:"settle_delay"`
	InterPassDelay    string    `yaml:"inter_pass_delay"`
	StagnationTimeout string    `yaml:"stagnation_timeout"`
	MaxPasses         int       `yaml:"max_passes"` // 0 means until stopped
}

// Restart configures the randomized restart escalation
type Restart struct {
	Strategy        string `yaml:"strategy"` // random or swarm
	Attempts        int    `yaml:"attempts"`
	SettleDelay     string `yaml:"settle_delay"`
	Seed            int64  `yaml:"seed"`
	SwarmPopulation int    `yaml:"swarm_population"`
}

// Observer configures the passive score watcher
type Observer struct {
	Enabled      bool   `yaml:"enabled"`
	PollInterval string `yaml:"poll_interval"`
}

// Form describes how the host form is reached and recognized
type Form struct {
	Driver            string   `yaml:"driver"` // sim or browser
	URL               string   `yaml:"url,omitempty"`
	Headless          bool     `yaml:"headless"`
	InputClass        string   `yaml:"input_class"`
	IgnoreSelectClass string   `yaml:"ignore_select_class"`
	RecalculateLabels []string `yaml:"recalculate_labels"`
}

// Classifier is the data-driven label → category table
type Classifier struct {
	Rules     []Rule             `yaml:"rules"`
	Profiles  map[string]Profile `yaml:"profiles"`
	Overrides []Override         `yaml:"overrides,omitempty"`
}

// Rule maps a case-insensitive label substring to a category
type Rule struct {
	Pattern  string `yaml:"pattern"`
	Category string `yaml:"category"`
}

// Profile is the search range of a category
type Profile struct {
	Min   float64   `yaml:"min"`
	Max   float64   `yaml:"max"`
	Sweep []float64 `yaml:"sweep,omitempty"`
}

// Override pins the range of one exact field label
type Override struct {
	Label string    `yaml:"label"`
	Min   float64   `yaml:"min"`
	Max   float64   `yaml:"max"`
	Sweep []float64 `yaml:"sweep,omitempty"`
}

// Measure maps a case-insensitive measure-name substring to a snapshot key
type Measure struct {
	Pattern string `yaml:"pattern"`
	Key     string `yaml:"key"`
}

// Storage locates the persisted best record and the history ledger.
// An empty state_path keeps the best record in memory.
type Storage struct {
	StatePath   string `yaml:"state_path"`
	HistoryPath string `yaml:"history_path"`
}

// Server holds the control plane listen addresses
type Server struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// Notify configures webhook delivery of new best scores
type Notify struct {
	WebhookURL string `yaml:"webhook_url"`
	MaxRetries int    `yaml:"max_retries"`
	Backoff    string `yaml:"backoff"` // exponential, linear, constant
	BaseMs     int    `yaml:"base_ms"`
	MaxMs      int    `yaml:"max_ms"`
}

// GetSettleDelay parses the settle delay
func (s *Search) GetSettleDelay() (time.Duration, error) {
	return time.ParseDuration(s.SettleDelay)
}

// GetInterPassDelay parses the inter-pass delay
func (s *Search) GetInterPassDelay() (time.Duration, error) {
	return time.ParseDuration(s.InterPassDelay)
}

// GetStagnationTimeout parses the stagnation timeout
func (s *Search) GetStagnationTimeout() (time.Duration, error) {
	return time.ParseDuration(s.StagnationTimeout)
}

// GetSettleDelay parses the restart settle delay
func (r *Restart) GetSettleDelay() (time.Duration, error) {
	return time.ParseDuration(r.SettleDelay)
}

// GetPollInterval parses the observer poll interval
func (o *Observer) GetPollInterval() (time.Duration, error) {
	return time.ParseDuration(o.PollInterval)
}
