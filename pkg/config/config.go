// Package config handles configuration for safari-runner.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the Barcamp Brno scenario.
const (
	DefaultServerURL       = "http://127.0.0.1:1234/wd/hub"
	DefaultBrowserName     = "safari"
	DefaultPlatformName    = "iOS"
	DefaultDeviceName      = "iPhone XS"
	DefaultPlatformVersion = "12.1"
)

// Config represents the runner configuration (safari-runner.yaml).
type Config struct {
	ServerURL    string            `yaml:"serverUrl"`
	Capabilities Capabilities      `yaml:"capabilities"`
	Timeouts     Timeouts          `yaml:"timeouts"`
	Screen       Screen            `yaml:"screen"`
	Scenario     string            `yaml:"scenario"` // file path or builtin:<name>
	Output       string            `yaml:"output"`   // report directory
	Env          map[string]string `yaml:"env"`      // scenario variables
}

// Capabilities is the capability set sent when creating the session.
type Capabilities struct {
	BrowserName     string                 `yaml:"browserName"`
	PlatformName    string                 `yaml:"platformName"`
	DeviceName      string                 `yaml:"deviceName"`
	PlatformVersion string                 `yaml:"platformVersion"`
	Extra           map[string]interface{} `yaml:"extra"` // e.g. appium:udid
}

// Timeouts are in milliseconds.
type Timeouts struct {
	PageLoadMs int `yaml:"pageLoad"` // server-side page load timeout
	WaitMs     int `yaml:"wait"`     // default waitUntil timeout
	PollMs     int `yaml:"poll"`     // waitUntil poll interval
}

// Screen describes the device viewport.
type Screen struct {
	// Height, when set, overrides the height the server reports for the
	// scroll start point. Zero uses the server's window size.
	Height int `yaml:"height"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ServerURL: DefaultServerURL,
		Capabilities: Capabilities{
			BrowserName:     DefaultBrowserName,
			PlatformName:    DefaultPlatformName,
			DeviceName:      DefaultDeviceName,
			PlatformVersion: DefaultPlatformVersion,
		},
		Timeouts: Timeouts{
			PageLoadMs: 60000,
			WaitMs:     10000,
			PollMs:     250,
		},
	}
}

// Map returns the capabilities as the map sent to the server. Each call returns
// a new map, so callers cannot change the configuration through it.
func (c Capabilities) Map() map[string]interface{} {
	m := make(map[string]interface{}, 4+len(c.Extra))
	for k, v := range c.Extra {
		m[k] = v
	}
	if c.BrowserName != "" {
		m["browserName"] = c.BrowserName
	}
	if c.PlatformName != "" {
		m["platformName"] = c.PlatformName
	}
	if c.DeviceName != "" {
		m["deviceName"] = c.DeviceName
	}
	if c.PlatformVersion != "" {
		m["platformVersion"] = c.PlatformVersion
	}
	return m
}

// PageLoad returns the page load timeout.
func (t Timeouts) PageLoad() time.Duration { return time.Duration(t.PageLoadMs) * time.Millisecond }

// Wait returns the default wait timeout.
func (t Timeouts) Wait() time.Duration { return time.Duration(t.WaitMs) * time.Millisecond }

// Poll returns the wait poll interval.
func (t Timeouts) Poll() time.Duration { return time.Duration(t.PollMs) * time.Millisecond }

// Validate checks the configuration for values the runner cannot work with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid serverUrl %q", c.ServerURL)
	}
	if c.Capabilities.BrowserName == "" {
		return fmt.Errorf("capabilities.browserName is required")
	}
	if c.Timeouts.PageLoadMs < 0 || c.Timeouts.WaitMs < 0 || c.Timeouts.PollMs < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.Screen.Height < 0 {
		return fmt.Errorf("screen.height must not be negative")
	}
	return nil
}

// Load loads configuration from a file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir looks for safari-runner.yaml or safari-runner.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"safari-runner.yaml", "safari-runner.yml"} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found, use defaults
	return Default(), nil
}
