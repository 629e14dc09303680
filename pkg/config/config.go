// Package config loads the krun configuration file. The file is YAML,
// validated against an embedded JSON schema before decoding.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/adrg/xdg"
	"github.com/goccy/go-yaml"

	_ "embed"

	"github.com/macropower/krun/pkg/schema"
)

//go:generate go run ../../internal/schemagen/main.go -o config.v1beta1.json

//go:embed config.v1beta1.json
var schemaJSON []byte

// DefaultValidator validates configuration data against the embedded
// schema.
var DefaultValidator = schema.MustNewValidator(schemaJSON)

// Config is the krun configuration.
type Config struct {
	// APIVersion specifies the API version for this configuration.
	APIVersion string `json:"apiVersion" jsonschema:"title=API Version"`
	// Kind defines the type of configuration.
	Kind string `json:"kind" jsonschema:"title=Kind"`
	// Kubectl is the kubectl-style tool to wrap, e.g. "kubectl" or "oc".
	Kubectl string `json:"kubectl,omitempty" jsonschema:"title=Kubectl Command"`
	// LogFile is the session logfile path.
	LogFile string `json:"logFile,omitempty" jsonschema:"title=Log File"`
	// CacheTTL is the maximum age of on-disk cache entries, as a Go
	// duration string.
	CacheTTL string `json:"cacheTTL,omitempty" jsonschema:"title=Cache TTL"`
	// OTLPEndpoint enables trace export to the given OTLP gRPC endpoint.
	OTLPEndpoint string `json:"otlpEndpoint,omitempty" jsonschema:"title=OTLP Endpoint"`
	// Verbose makes wrapped commands run verbosely and echoes captured
	// output to the session log.
	Verbose bool `json:"verbose,omitempty" jsonschema:"title=Verbose"`
}

// New returns a [Config] with defaults applied.
func New() *Config {
	c := &Config{
		APIVersion: "krun.jacobcolvin.com/v1beta1",
		Kind:       "Configuration",
	}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults fills unset fields with their defaults.
func (c *Config) EnsureDefaults() {
	if c.Kubectl == "" {
		c.Kubectl = "kubectl"
	}
	if c.LogFile == "" {
		c.LogFile = "krun.log"
	}
	if c.CacheTTL == "" {
		c.CacheTTL = "12h"
	}
}

// TTL returns the parsed cache TTL.
func (c *Config) TTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 0, fmt.Errorf("parse cacheTTL: %w", err)
	}

	return d, nil
}

// GetPath returns the config file path under the user's XDG config home.
func GetPath() string {
	path, err := xdg.ConfigFile("krun/config.yaml")
	if err != nil {
		return "config.yaml"
	}

	return path
}

// Load reads, validates, and decodes the config at path. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(), nil
		}

		return nil, fmt.Errorf("read config: %w", err)
	}

	return LoadBytes(data)
}

// LoadBytes validates and decodes YAML configuration data.
func LoadBytes(data []byte) (*Config, error) {
	var raw any

	err := yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	err = DefaultValidator.Validate(raw)
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	c := New()

	err = yaml.Unmarshal(data, c)
	if err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	c.EnsureDefaults()

	return c, nil
}
