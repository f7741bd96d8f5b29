// Package config handles configuration for checkin-runner.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/checkin-runner/pkg/core"
	"github.com/devicelab-dev/checkin-runner/pkg/gesture"
	"github.com/devicelab-dev/checkin-runner/pkg/interact"
	"github.com/devicelab-dev/checkin-runner/pkg/locator"
	"github.com/devicelab-dev/checkin-runner/pkg/logger"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvAppiumURL  = "APPIUM_URL"
	EnvAppiumHost = "APPIUM_HOST"
	EnvAppiumPort = "APPIUM_PORT"
	EnvAppPackage = "APP_PACKAGE"
)

const (
	defaultAppiumHost = "127.0.0.1"
	defaultAppiumPort = "4723"
	capAppPackage     = "appium:appPackage"
)

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// Scenario selection
	Scenarios   []string `yaml:"scenarios"`   // Glob patterns for scenario files
	IncludeTags []string `yaml:"includeTags"` // Tags to include
	ExcludeTags []string `yaml:"excludeTags"` // Tags to exclude

	Appium AppiumConfig `yaml:"appium"`

	// Engine tuning
	Timeouts     locator.Profile `yaml:"timeouts"`
	ScrollBudget int             `yaml:"scrollBudget"`
	Gestures     gesture.Config  `yaml:"gestures"`
	Interaction  interact.Config `yaml:"interaction"`

	// Scenario lifecycle
	ScenarioPause time.Duration       `yaml:"scenarioPause"` // Settle pause before each scenario
	Artifacts     core.ArtifactConfig `yaml:"artifacts"`
	OutputDir     string              `yaml:"outputDir"`

	Log logger.Options `yaml:"log"`

	// Values available to steps as ${NAME}
	Env map[string]string `yaml:"env"`
}

// AppiumConfig describes the automation server and session.
type AppiumConfig struct {
	URL            string                 `yaml:"url"`
	ConnectRetries int                    `yaml:"connectRetries"`
	Capabilities   map[string]interface{} `yaml:"capabilities"`
	// Settings are applied with /appium/settings after each session starts,
	// e.g. waitForIdleTimeout.
	Settings map[string]interface{} `yaml:"settings"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Appium: AppiumConfig{
			URL:            "http://" + net.JoinHostPort(defaultAppiumHost, defaultAppiumPort),
			ConnectRetries: 3,
			Capabilities: map[string]interface{}{
				"platformName":                "Android",
				"appium:platformVersion":      "16.0",
				"appium:deviceName":           "Android Emulator",
				"appium:automationName":       "UiAutomator2",
				capAppPackage:                 "com.cucumberappiumdemo",
				"appium:appActivity":          ".MainActivity",
				"appium:noReset":              true,
				"appium:fullReset":            false,
				"appium:newCommandTimeout":    240,
				"appium:autoGrantPermissions": true,
			},
		},
		Timeouts:      locator.DefaultProfile(),
		ScrollBudget:  locator.DefaultScrollBudget,
		Gestures:      gesture.DefaultConfig(),
		Interaction:   interact.DefaultConfig(),
		ScenarioPause: time.Second,
		Artifacts:     core.DefaultArtifactConfig(),
		Log:           logger.Options{Level: "info"},
	}
}

// Load loads configuration from a file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, core.ErrInvalidConfig.WithMessagef("parse %s", path).WithCause(err)
	}

	return cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	return Default(), nil
}

// LoadEnvFile loads dir/.env into the process environment if it exists.
// Variables already set are not overwritten.
func LoadEnvFile(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	logger.Debug("loaded environment from %s", path)
	return nil
}

// ApplyEnv overrides file values with environment variables. APPIUM_URL
// wins over APPIUM_HOST/APPIUM_PORT.
func (c *Config) ApplyEnv() {
	if u := os.Getenv(EnvAppiumURL); u != "" {
		c.Appium.URL = u
	} else if host, port := os.Getenv(EnvAppiumHost), os.Getenv(EnvAppiumPort); host != "" || port != "" {
		if host == "" {
			host = defaultAppiumHost
		}
		if port == "" {
			port = defaultAppiumPort
		}
		c.Appium.URL = "http://" + net.JoinHostPort(host, port)
	}
	if pkg := os.Getenv(EnvAppPackage); pkg != "" {
		c.SetAppPackage(pkg)
	}
}

// SetAppPackage sets the appium:appPackage capability.
func (c *Config) SetAppPackage(pkg string) {
	if c.Appium.Capabilities == nil {
		c.Appium.Capabilities = map[string]interface{}{}
	}
	c.Appium.Capabilities[capAppPackage] = pkg
}

// Validate checks the values the engine depends on.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Appium.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return core.ErrInvalidConfig.WithMessagef("invalid appium url %q", c.Appium.URL)
	}
	if c.ScrollBudget < 1 {
		return core.ErrInvalidConfig.WithMessagef("scrollBudget must be at least 1, got %d", c.ScrollBudget)
	}
	if c.AppPackage() == "" {
		return core.ErrMissingRequired.WithMessage("capability appium:appPackage is required")
	}
	if c.Timeouts.FastProbe > c.Timeouts.Normal && c.Timeouts.Normal > 0 {
		return core.ErrInvalidConfig.WithMessagef("timeouts.fastProbe (%v) exceeds timeouts.normal (%v)", c.Timeouts.FastProbe, c.Timeouts.Normal)
	}
	return nil
}

// AppPackage returns the target application id.
func (c *Config) AppPackage() string {
	if v, ok := c.Appium.Capabilities[capAppPackage].(string); ok {
		return v
	}
	if v, ok := c.Appium.Capabilities["appium:bundleId"].(string); ok {
		return v
	}
	return ""
}

// Platform returns the lowercased platformName capability.
func (c *Config) Platform() string {
	v, _ := c.Appium.Capabilities["platformName"].(string)
	return strings.ToLower(v)
}

// CapabilitiesCopy returns a copy of the session capabilities.
func (c *Config) CapabilitiesCopy() map[string]interface{} {
	out := make(map[string]interface{}, len(c.Appium.Capabilities))
	for k, v := range c.Appium.Capabilities {
		out[k] = v
	}
	return out
}
