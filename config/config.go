// Copyright 2025 The peony Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration management for peony.
//
// Values are resolved, from lowest to highest precedence, from:
//   - Defaults returned by [New]
//   - An optional YAML configuration file
//   - Environment variables (key upper-cased, '-' replaced by '_')
//   - Command-line flags bound to the same keys
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/peonyhq/peony/capture"
	"github.com/peonyhq/peony/gollm"
)

// Configuration keys. Flags use the same names.
const (
	KeyProvider             = "provider"
	KeyModel                = "model"
	KeyMaxRetries           = "max-retries"
	KeyMaxTokens            = "max-tokens"
	KeyTemperature          = "temperature"
	KeyMaxIterations        = "max-iterations"
	KeyContinuationWindow   = "continuation-window"
	KeyBrowserDriver        = "browser-driver"
	KeyRemoteBrowserURL     = "remote-browser-url"
	KeyNavigationTimeout    = "navigation-timeout"
	KeyDiscoveryTimeout     = "discovery-timeout"
	KeyPageDelay            = "page-delay"
	KeyPageTimeout          = "page-timeout"
	KeyRequestTimeout       = "request-timeout"
	KeyScreenshot           = "screenshot"
	KeyAddr                 = "addr"
	KeyAllowedOrigins       = "allowed-origins"
	KeyDefaultMaxPages      = "default-max-pages"
	KeyMaxPagesLimit        = "max-pages-limit"
	KeyVerbose              = "verbose"
	KeyAnthropicAPIKey      = "anthropic-api-key"
	KeyOpenAIAPIKey         = "openai-api-key"
	KeyBrowserbaseAPIKey    = "browserbase-api-key"
	KeyBrowserbaseProjectID = "browserbase-project-id"
	KeyFirecrawlAPIKey      = "firecrawl-api-key"
)

// Config represents the configuration for peony.
type Config struct {
	Provider           string
	Model              string
	AnthropicAPIKey    string
	OpenAIAPIKey       string
	MaxRetries         int
	MaxTokens          int64
	Temperature        float64
	MaxIterations      int
	ContinuationWindow int

	BrowserDriver        string
	RemoteBrowserURL     string
	BrowserbaseAPIKey    string
	BrowserbaseProjectID string
	FirecrawlAPIKey      string
	NavigationTimeout    time.Duration
	DiscoveryTimeout     time.Duration
	Screenshot           bool

	PageDelay      time.Duration
	PageTimeout    time.Duration
	RequestTimeout time.Duration

	Addr            string
	AllowedOrigins  []string
	DefaultMaxPages int
	MaxPagesLimit   int

	Verbose bool
}

// New returns the default configuration for peony.
func New() *Config {
	return &Config{
		Provider:           gollm.ProviderAnthropic,
		MaxRetries:         2,
		MaxTokens:          15000,
		Temperature:        0.2,
		MaxIterations:      4,
		ContinuationWindow: 800,
		BrowserDriver:      capture.DriverRod,
		NavigationTimeout:  30 * time.Second,
		DiscoveryTimeout:   15 * time.Second,
		PageDelay:          time.Second,
		Addr:               ":8000",
		AllowedOrigins:     []string{"http://localhost:3000"},
		DefaultMaxPages:    5,
		MaxPagesLimit:      20,
	}
}

// SetDefaults registers the values of [New] as v's defaults and enables
// environment lookups for every key.
func SetDefaults(v *viper.Viper) {
	d := New()
	v.SetDefault(KeyProvider, d.Provider)
	v.SetDefault(KeyModel, d.Model)
	v.SetDefault(KeyMaxRetries, d.MaxRetries)
	v.SetDefault(KeyMaxTokens, d.MaxTokens)
	v.SetDefault(KeyTemperature, d.Temperature)
	v.SetDefault(KeyMaxIterations, d.MaxIterations)
	v.SetDefault(KeyContinuationWindow, d.ContinuationWindow)
	v.SetDefault(KeyBrowserDriver, d.BrowserDriver)
	v.SetDefault(KeyRemoteBrowserURL, d.RemoteBrowserURL)
	v.SetDefault(KeyNavigationTimeout, d.NavigationTimeout)
	v.SetDefault(KeyDiscoveryTimeout, d.DiscoveryTimeout)
	v.SetDefault(KeyPageDelay, d.PageDelay)
	v.SetDefault(KeyPageTimeout, d.PageTimeout)
	v.SetDefault(KeyRequestTimeout, d.RequestTimeout)
	v.SetDefault(KeyScreenshot, d.Screenshot)
	v.SetDefault(KeyAddr, d.Addr)
	v.SetDefault(KeyAllowedOrigins, d.AllowedOrigins)
	v.SetDefault(KeyDefaultMaxPages, d.DefaultMaxPages)
	v.SetDefault(KeyMaxPagesLimit, d.MaxPagesLimit)
	v.SetDefault(KeyVerbose, d.Verbose)

	// API keys have no default but must still be visible to AutomaticEnv.
	for _, key := range []string{KeyAnthropicAPIKey, KeyOpenAIAPIKey, KeyBrowserbaseAPIKey, KeyBrowserbaseProjectID, KeyFirecrawlAPIKey} {
		_ = v.BindEnv(key)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// ReadFile reads the configuration file at path into v. When path is empty
// peony.yaml is looked up in the working directory and $HOME/.peony, and a
// missing file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("peony")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(os.ExpandEnv("$HOME/.peony"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// Load resolves a [Config] from v.
func Load(v *viper.Viper) *Config {
	return &Config{
		Provider:             v.GetString(KeyProvider),
		Model:                v.GetString(KeyModel),
		AnthropicAPIKey:      v.GetString(KeyAnthropicAPIKey),
		OpenAIAPIKey:         v.GetString(KeyOpenAIAPIKey),
		MaxRetries:           v.GetInt(KeyMaxRetries),
		MaxTokens:            v.GetInt64(KeyMaxTokens),
		Temperature:          v.GetFloat64(KeyTemperature),
		MaxIterations:        v.GetInt(KeyMaxIterations),
		ContinuationWindow:   v.GetInt(KeyContinuationWindow),
		BrowserDriver:        v.GetString(KeyBrowserDriver),
		RemoteBrowserURL:     v.GetString(KeyRemoteBrowserURL),
		BrowserbaseAPIKey:    v.GetString(KeyBrowserbaseAPIKey),
		BrowserbaseProjectID: v.GetString(KeyBrowserbaseProjectID),
		FirecrawlAPIKey:      v.GetString(KeyFirecrawlAPIKey),
		NavigationTimeout:    v.GetDuration(KeyNavigationTimeout),
		DiscoveryTimeout:     v.GetDuration(KeyDiscoveryTimeout),
		Screenshot:           v.GetBool(KeyScreenshot),
		PageDelay:            v.GetDuration(KeyPageDelay),
		PageTimeout:          v.GetDuration(KeyPageTimeout),
		RequestTimeout:       v.GetDuration(KeyRequestTimeout),
		Addr:                 v.GetString(KeyAddr),
		AllowedOrigins:       v.GetStringSlice(KeyAllowedOrigins),
		DefaultMaxPages:      v.GetInt(KeyDefaultMaxPages),
		MaxPagesLimit:        v.GetInt(KeyMaxPagesLimit),
		Verbose:              v.GetBool(KeyVerbose),
	}
}

// APIKey returns the model API key of the configured provider.
func (c *Config) APIKey() string {
	switch c.Provider {
	case gollm.ProviderOpenAI:
		return c.OpenAIAPIKey
	default:
		return c.AnthropicAPIKey
	}
}

// Validate validates for each [Config] field value.
func (c *Config) Validate() error {
	if err := c.validateModel(); err != nil {
		return err
	}
	return c.ValidateCapture()
}

// validateModel validates the provider and generation settings.
func (c *Config) validateModel() error {
	switch c.Provider {
	case gollm.ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("Anthropic API key not provided. Set ANTHROPIC_API_KEY environment variable or use --anthropic-api-key flag")
		}
	case gollm.ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OpenAI API key not provided. Set OPENAI_API_KEY environment variable or use --openai-api-key flag")
		}
	default:
		return fmt.Errorf("provider must be %q or %q", gollm.ProviderAnthropic, gollm.ProviderOpenAI)
	}

	if c.MaxTokens <= 0 {
		return fmt.Errorf("max-tokens must be greater than 0")
	}

	if c.Temperature < 0 {
		return fmt.Errorf("temperature must be greater than or equal to 0")
	}

	if c.MaxIterations <= 0 {
		return fmt.Errorf("max-iterations must be greater than 0")
	}

	if c.ContinuationWindow <= 0 {
		return fmt.Errorf("continuation-window must be greater than 0")
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries must be greater than or equal to 0")
	}

	return nil
}

// ValidateCapture validates only the settings used to capture pages, for
// commands that never call the language model.
func (c *Config) ValidateCapture() error {
	switch c.BrowserDriver {
	case capture.DriverRod, capture.DriverChromedp:
	case capture.DriverFirecrawl:
		if c.FirecrawlAPIKey == "" {
			return fmt.Errorf("Firecrawl API key not provided. Set FIRECRAWL_API_KEY environment variable or use --firecrawl-api-key flag")
		}
	default:
		return fmt.Errorf("browser-driver must be one of %q, %q or %q", capture.DriverRod, capture.DriverChromedp, capture.DriverFirecrawl)
	}

	if c.NavigationTimeout <= 0 || c.DiscoveryTimeout <= 0 {
		return fmt.Errorf("navigation-timeout and discovery-timeout must be greater than 0")
	}

	if c.PageDelay < 0 || c.PageTimeout < 0 || c.RequestTimeout < 0 {
		return fmt.Errorf("page-delay, page-timeout and request-timeout must not be negative")
	}

	if c.MaxPagesLimit <= 0 {
		return fmt.Errorf("max-pages-limit must be greater than 0")
	}

	if c.DefaultMaxPages <= 0 || c.DefaultMaxPages > c.MaxPagesLimit {
		return fmt.Errorf("default-max-pages must be between 1 and max-pages-limit (%d)", c.MaxPagesLimit)
	}

	return nil
}
