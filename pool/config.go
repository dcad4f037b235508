package pool

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Duration wraps time.Duration with YAML/JSON encoding as a duration string
// ("30s", "2m").
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return d.set(raw)
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	return d.set(raw)
}

func (d *Duration) set(raw any) error {
	switch value := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
		return nil
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case int64:
		*d = Duration(time.Duration(value))
		return nil
	case uint64:
		*d = Duration(time.Duration(value))
		return nil
	default:
		return fmt.Errorf("invalid duration value %v (%T)", raw, raw)
	}
}

// Config describes one backend configuration: an endpoint plus credentials
// and limits. Configs are immutable once added to a pool; identity is a
// content hash, so adding the same config twice collapses to one entry.
type Config struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	APIKey  string `json:"api_key" yaml:"api_key"`

	// MaxRetries is the retry budget for requests against this backend.
	// Zero means unset: adapters fall back to their own default.
	MaxRetries    int      `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	MaxConcurrent int      `json:"max_concurrent,omitempty" yaml:"max_concurrent,omitempty"`
	Timeout       Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// ID returns the config's content hash. Field order cannot affect the result
// because hashing goes through a key-sorted JSON object.
func (c Config) ID() string {
	payload := map[string]any{
		"base_url":       c.BaseURL,
		"api_key":        c.APIKey,
		"max_retries":    c.MaxRetries,
		"max_concurrent": c.MaxConcurrent,
		"timeout":        time.Duration(c.Timeout).String(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		// Marshaling a map of strings and ints cannot fail
		panic(fmt.Sprintf("pool: config hash: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:12])
}

// LoadConfigs reads a YAML file containing a list of provider configs.
func LoadConfigs(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return ParseConfigs(data)
}

// ParseConfigs decodes a YAML list of provider configs.
func ParseConfigs(data []byte) ([]Config, error) {
	var configs []Config
	if err := yaml.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("error parsing configs: %w", err)
	}
	return configs, nil
}

// NewFromFile creates a pool preloaded with the configs in a YAML file.
func NewFromFile(path string, opts ...Option) (*Pool, error) {
	configs, err := LoadConfigs(path)
	if err != nil {
		return nil, err
	}
	p := New(opts...)
	for _, cfg := range configs {
		p.Add(cfg)
	}
	return p, nil
}
