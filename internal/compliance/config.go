package compliance

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// ErrInvalidConfig marks a rule table that cannot be used. It is fatal at startup.
var ErrInvalidConfig = errors.New("invalid compliance configuration")

// Config is the full rule table. Build a Classifier from it with New; the
// classifier keeps its own copy, so later changes to a Config have no effect.
type Config struct {
	MaxPolicyTextBytes  int           `yaml:"max_policy_text_bytes"`
	SensitiveCategories []string      `yaml:"sensitive_categories"`
	EscalateActions     []ActionType  `yaml:"escalate_actions"`
	Rules               []RuleConfig  `yaml:"rules"`
	PolicyTopics        []TopicConfig `yaml:"policy_topics"`
}

// RuleConfig is one action rule. When is an expr-lang boolean expression.
type RuleConfig struct {
	Name        string    `yaml:"name"`
	When        string    `yaml:"when"`
	Severity    RiskLevel `yaml:"severity"`
	Invalidates bool      `yaml:"invalidates,omitempty"`
	Finding     string    `yaml:"finding"`
	Suggestion  string    `yaml:"suggestion"`
	Reference   string    `yaml:"reference,omitempty"`
}

// TopicConfig is one disclosure a privacy policy must contain.
type TopicConfig struct {
	Name       string    `yaml:"name"`
	Severity   RiskLevel `yaml:"severity"`
	Keywords   []string  `yaml:"keywords"`
	Finding    string    `yaml:"finding"`
	Suggestion string    `yaml:"suggestion"`
	Reference  string    `yaml:"reference,omitempty"`
}

// DefaultConfig returns a fresh copy of the embedded NDPA 2023 rule table.
func DefaultConfig() Config {
	cfg, err := decodeConfig(bytes.NewReader(defaultRules), Config{})
	if err != nil {
		panic(fmt.Sprintf("embedded rules.yaml: %v", err))
	}
	return cfg
}

// LoadConfig overlays the YAML file at path on the embedded defaults.
// Top-level keys present in the file replace the default value wholesale.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: open %s: %w", ErrInvalidConfig, path, err)
	}
	defer f.Close()
	return ParseConfig(f)
}

// ParseConfig is LoadConfig for an arbitrary reader.
func ParseConfig(r io.Reader) (Config, error) {
	return decodeConfig(r, DefaultConfig())
}

func decodeConfig(r io.Reader, base Config) (Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	cfg := base
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: decode: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
