package servicedef

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultClientID       = "test-client-id"
	DefaultRequestTimeout = 30 * time.Second
	DefaultProbeDelay     = time.Second
	DefaultEnvFile        = ".env"
)

// Config is everything the harness needs to know about the services under test and the
// credentials to use against them. It is built once by LoadConfig and then passed to the
// harness explicitly.
type Config struct {
	Services       []ServiceEndpoint
	Token          string
	TokenSecret    string
	ClientID       string
	RequestTimeout time.Duration
	// ProbeDelay is the pause after each rate-limit probe request; zero means none.
	ProbeDelay time.Duration
	SuiteFiles []string
}

// LoadOptions says where LoadConfig should look for configuration besides the environment.
type LoadOptions struct {
	// ConfigFile is an optional YAML file.
	ConfigFile string
	// EnvFile is an optional dotenv file; it is silently ignored if it does not exist.
	EnvFile string
}

type fileConfig struct {
	Services       []ServiceEndpoint `yaml:"services"`
	Token          string            `yaml:"token"`
	TokenSecret    string            `yaml:"token_secret"`
	ClientID       string            `yaml:"client_id"`
	RequestTimeout string            `yaml:"request_timeout"`
	ProbeDelay     string            `yaml:"probe_delay"`
	SuiteFiles     []string          `yaml:"suite_files"`
}

// LoadConfig builds a Config from defaults, then the config file, then the environment
// (including the dotenv file). Values set later win.
func LoadConfig(opts LoadOptions) (*Config, error) {
	cfg := &Config{
		Services:       DefaultEndpoints(),
		ClientID:       DefaultClientID,
		RequestTimeout: DefaultRequestTimeout,
		ProbeDelay:     DefaultProbeDelay,
	}

	if opts.ConfigFile != "" {
		if err := cfg.applyFile(opts.ConfigFile); err != nil {
			return nil, err
		}
	}

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	for _, s := range fc.Services {
		c.SetService(s)
	}
	if fc.Token != "" {
		c.Token = fc.Token
	}
	if fc.TokenSecret != "" {
		c.TokenSecret = fc.TokenSecret
	}
	if fc.ClientID != "" {
		c.ClientID = fc.ClientID
	}
	if fc.RequestTimeout != "" {
		d, err := time.ParseDuration(fc.RequestTimeout)
		if err != nil {
			return fmt.Errorf("config file %s: invalid request_timeout: %w", path, err)
		}
		c.RequestTimeout = d
	}
	if fc.ProbeDelay != "" {
		d, err := time.ParseDuration(fc.ProbeDelay)
		if err != nil {
			return fmt.Errorf("config file %s: invalid probe_delay: %w", path, err)
		}
		c.ProbeDelay = d
	}
	dir := filepath.Dir(path)
	for _, f := range fc.SuiteFiles {
		if !filepath.IsAbs(f) {
			f = filepath.Join(dir, f)
		}
		c.SuiteFiles = append(c.SuiteFiles, f)
	}
	return nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		// not having one is normal in CI, where the variables are set directly
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BOOKING_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("BOOKING_TOKEN_SECRET"); v != "" {
		c.TokenSecret = v
	}
	if v := os.Getenv("BOOKING_CLIENT_ID"); v != "" {
		c.ClientID = v
	}
	c.RequestTimeout = getDurationWithDefault("BOOKING_REQUEST_TIMEOUT", c.RequestTimeout)
	c.ProbeDelay = getDurationWithDefault("BOOKING_PROBE_DELAY", c.ProbeDelay)
	for i, s := range c.Services {
		if v := os.Getenv(EnvVarName(s.Name)); v != "" {
			c.Services[i].BaseURL = v
		}
	}
}

// getDurationWithDefault gets a duration from an environment variable or returns the default.
func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

// SetService replaces the endpoint with the same name, or adds it if there is none.
func (c *Config) SetService(e ServiceEndpoint) {
	e.BaseURL = strings.TrimSuffix(e.BaseURL, "/")
	for i, s := range c.Services {
		if s.Name == e.Name {
			c.Services[i] = e
			return
		}
	}
	c.Services = append(c.Services, e)
}

// Service looks up an endpoint by name.
func (c *Config) Service(name string) (ServiceEndpoint, bool) {
	for _, s := range c.Services {
		if s.Name == name {
			return s, true
		}
	}
	return ServiceEndpoint{}, false
}

// Select returns the named endpoints in the order given, or all of them if names is empty.
func (c *Config) Select(names []string) ([]ServiceEndpoint, error) {
	if len(names) == 0 {
		return append([]ServiceEndpoint(nil), c.Services...), nil
	}
	ret := make([]ServiceEndpoint, 0, len(names))
	for _, n := range names {
		s, ok := c.Service(n)
		if !ok {
			return nil, fmt.Errorf("unknown service %q", n)
		}
		ret = append(ret, s)
	}
	return ret, nil
}

// ServiceNames returns the names of all configured services.
func (c *Config) ServiceNames() []string {
	ret := make([]string, 0, len(c.Services))
	for _, s := range c.Services {
		ret = append(ret, s.Name)
	}
	return ret
}

func (c *Config) Validate() error {
	var problems []string
	seen := make(map[string]bool)
	for _, s := range c.Services {
		if err := s.validate(); err != nil {
			problems = append(problems, err.Error())
		}
		if seen[s.Name] {
			problems = append(problems, fmt.Sprintf("service %s is defined more than once", s.Name))
		}
		seen[s.Name] = true
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "request timeout must be positive")
	}
	if c.ProbeDelay < 0 {
		problems = append(problems, "probe delay must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
