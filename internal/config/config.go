package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/drone/envsubst/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// SettingPrefix is the prefix Seq uses when handing app settings to an
// executable app through its environment.
const SettingPrefix = "SEQ_APP_SETTING_"

const (
	DefaultInstance    = "default"
	DefaultCounterHelp = "To keep the count of no of times a particular error coming in a module."
	DefaultPushTimeout = 5 * time.Second
)

var (
	ErrPushgatewayURLMissing = errors.New("pushgateway_url must be set")
	ErrCounterNameMissing    = errors.New("counter_name must be set")
)

type Config struct {
	PushgatewayURL string `yaml:"pushgateway_url" toml:"pushgateway_url"`
	CounterName    string `yaml:"counter_name" toml:"counter_name"`
	CounterHelp    string `yaml:"counter_help,omitempty" toml:"counter_help,omitempty"`
	// PropertyNames holds candidate property names, one per line.
	PropertyNames string `yaml:"property_names,omitempty" toml:"property_names,omitempty"`
	Instance      string `yaml:"instance,omitempty" toml:"instance,omitempty"`
	PushInterval  string `yaml:"push_interval,omitempty" toml:"push_interval,omitempty"`
	PushTimeout   string `yaml:"push_timeout,omitempty" toml:"push_timeout,omitempty"`
}

// Timing is the parsed form of the duration settings.
type Timing struct {
	// PushInterval is zero when every event triggers a push.
	PushInterval time.Duration
	PushTimeout  time.Duration
}

// Load reads a config file. Files ending in .toml are decoded as TOML and
// anything else as YAML. ${VAR} references are expanded from the
// environment first.
func Load(path string) (Config, error) {
	var cfg Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	expanded, err := envsubst.Eval(string(raw), os.Getenv)
	if err != nil {
		return cfg, fmt.Errorf("unable to substitute config with environment variables: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return cfg, fmt.Errorf("decode TOML %q: %w", path, err)
		}
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewBufferString(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("decode YAML %q: %w", path, err)
	}
	return cfg, nil
}

// envSettings maps the Seq setting names onto config fields. The names
// match the setting names the app declares to Seq.
var envSettings = map[string]func(*Config) *string{
	"PUSHGATEWAYURL":         func(c *Config) *string { return &c.PushgatewayURL },
	"COUNTERNAME":            func(c *Config) *string { return &c.CounterName },
	"COUNTERHELP":            func(c *Config) *string { return &c.CounterHelp },
	"APPLICATIONNAMEKEYLIST": func(c *Config) *string { return &c.PropertyNames },
	"INSTANCE":               func(c *Config) *string { return &c.Instance },
	"PUSHINTERVAL":           func(c *Config) *string { return &c.PushInterval },
	"PUSHTIMEOUT":            func(c *Config) *string { return &c.PushTimeout },
}

// ApplyEnv overrides fields with any SEQ_APP_SETTING_* values found through
// lookup. Unset variables leave the field alone; set but empty ones clear it.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for name, field := range envSettings {
		if v, ok := lookup(SettingPrefix + name); ok {
			*field(c) = v
		}
	}
}

// Validate fills defaults, checks the configuration and returns the parsed
// durations. All problems are reported together.
func (c *Config) Validate() (Timing, error) {
	timing := Timing{PushTimeout: DefaultPushTimeout}
	var result error

	if c.Instance == "" {
		c.Instance = DefaultInstance
	}
	if c.CounterHelp == "" {
		c.CounterHelp = DefaultCounterHelp
	}

	if c.PushgatewayURL == "" {
		result = multierror.Append(result, ErrPushgatewayURLMissing)
	} else if u, err := url.Parse(c.PushgatewayURL); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid pushgateway_url: %w", err))
	} else if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		result = multierror.Append(result, fmt.Errorf("invalid pushgateway_url %q: want an http(s) URL", c.PushgatewayURL))
	}

	if strings.TrimSpace(c.CounterName) == "" {
		result = multierror.Append(result, ErrCounterNameMissing)
	}

	if c.PushInterval != "" {
		d, err := time.ParseDuration(c.PushInterval)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid push_interval: %w", err))
		} else if d < 0 {
			result = multierror.Append(result, fmt.Errorf("invalid push_interval: %s is negative", d))
		}
		timing.PushInterval = d
	}

	if c.PushTimeout != "" {
		d, err := time.ParseDuration(c.PushTimeout)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid push_timeout: %w", err))
		} else if d <= 0 {
			result = multierror.Append(result, fmt.Errorf("invalid push_timeout: %s must be positive", d))
		}
		timing.PushTimeout = d
	}

	return timing, result
}
