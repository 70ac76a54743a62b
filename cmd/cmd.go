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

// Package cmd provides the command-line interface for peony.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/peonyhq/peony/capture"
	"github.com/peonyhq/peony/cloner"
	"github.com/peonyhq/peony/config"
	"github.com/peonyhq/peony/crawl"
	"github.com/peonyhq/peony/generator"
	"github.com/peonyhq/peony/gollm"
	"github.com/peonyhq/peony/snapshot"
)

var peonyCmd = &cobra.Command{
	Use:   "peony",
	Short: "Clone websites into standalone HTML using a headless browser and an LLM",
	Long: `peony captures the rendered markup, styles and images of a website with a headless browser
and asks a language model to reproduce it as a standalone HTML and CSS document.

It runs as an HTTP API (serve) or clones and analyzes pages directly from the command line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

// Execute executes the [peonyCmd] root command.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return peonyCmd.ExecuteContext(ctx)
}

var (
	v       = viper.New()
	cfg     *config.Config
	cfgFile string
)

func init() {
	config.SetDefaults(v)
	d := config.New()

	flags := peonyCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to a YAML configuration file (default ./peony.yaml or $HOME/.peony/peony.yaml)")
	flags.Bool(config.KeyVerbose, d.Verbose, "Enable verbose logging")

	flags.String(config.KeyProvider, d.Provider, "LLM provider (anthropic or openai)")
	flags.String(config.KeyModel, d.Model, "LLM model used for generation (provider default when empty)")
	flags.String(config.KeyAnthropicAPIKey, "", "Anthropic API key (env ANTHROPIC_API_KEY)")
	flags.String(config.KeyOpenAIAPIKey, "", "OpenAI API key (env OPENAI_API_KEY)")
	flags.Int(config.KeyMaxRetries, d.MaxRetries, "Maximum retries of a failed LLM request")
	flags.Int64(config.KeyMaxTokens, d.MaxTokens, "Maximum output tokens of each LLM request")
	flags.Float64(config.KeyTemperature, d.Temperature, "Sampling temperature of each LLM request")
	flags.Int(config.KeyMaxIterations, d.MaxIterations, "Maximum requests of the continuation loop")
	flags.Int(config.KeyContinuationWindow, d.ContinuationWindow, "Trailing characters sent when asking the model to continue")

	flags.String(config.KeyBrowserDriver, d.BrowserDriver, "Capture driver (rod, chromedp or firecrawl)")
	flags.String(config.KeyRemoteBrowserURL, d.RemoteBrowserURL, "DevTools WebSocket URL of a running Chrome instead of launching one")
	flags.String(config.KeyBrowserbaseAPIKey, "", "Browserbase API key (env BROWSERBASE_API_KEY)")
	flags.String(config.KeyBrowserbaseProjectID, "", "Browserbase project id (env BROWSERBASE_PROJECT_ID)")
	flags.String(config.KeyFirecrawlAPIKey, "", "Firecrawl API key (env FIRECRAWL_API_KEY)")
	flags.Duration(config.KeyNavigationTimeout, d.NavigationTimeout, "Timeout of page navigation when capturing a page")
	flags.Duration(config.KeyDiscoveryTimeout, d.DiscoveryTimeout, "Timeout of each page visit during link discovery")
	flags.Bool(config.KeyScreenshot, d.Screenshot, "Capture a full page screenshot with the design context")
	flags.Duration(config.KeyPageDelay, d.PageDelay, "Delay between pages of a site clone")
	flags.Duration(config.KeyPageTimeout, d.PageTimeout, "Timeout of each page of a site clone (0 for unlimited)")

	peonyCmd.AddCommand(serveCmd, cloneCmd, analyzeCmd)
}

// annotationCaptureOnly marks commands that capture pages without calling the language model.
const annotationCaptureOnly = "peony.capture-only"

func loadConfig(cmd *cobra.Command) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	if err := config.ReadFile(v, cfgFile); err != nil {
		return err
	}

	cfg = config.Load(v)
	validate := cfg.Validate
	if cmd.Annotations[annotationCaptureOnly] == "true" {
		validate = cfg.ValidateCapture
	}
	if err := validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	logger.DebugContext(cmd.Context(), "Loaded configuration",
		"config_file", v.ConfigFileUsed(),
		"provider", cfg.Provider,
		"model", cfg.Model,
		"api_key", maskVal(cfg.APIKey()),
		"browser_driver", cfg.BrowserDriver,
		"browserbase_api_key", maskVal(cfg.BrowserbaseAPIKey),
	)
	return nil
}

func setupLogger(verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if verbose {
		opts.Level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
	slog.SetDefault(logger)

	return logger
}

// maskVal hides all but a short prefix and suffix of a secret.
func maskVal(s string) string {
	if s == "" {
		return ""
	}
	sz := len(s)>>5 + len(s)>>4

	c := len(s) - 2*sz
	if c <= 0 {
		c = 8
	}
	return s[:sz] + strings.Repeat("*", c) + s[len(s)-sz:]
}

// newCloner wires the capture driver, the completion client and the generator
// described by cfg into a [cloner.Cloner].
func newCloner(cfg *config.Config) (*cloner.Cloner, error) {
	llm, err := gollm.New(gollm.Config{
		Provider:   cfg.Provider,
		APIKey:     cfg.APIKey(),
		Model:      cfg.Model,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}

	launcher, err := capture.NewLauncher(capture.Config{
		Driver:               cfg.BrowserDriver,
		RemoteURL:            cfg.RemoteBrowserURL,
		BrowserbaseAPIKey:    cfg.BrowserbaseAPIKey,
		BrowserbaseProjectID: cfg.BrowserbaseProjectID,
		FirecrawlAPIKey:      cfg.FirecrawlAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create capture launcher: %w", err)
	}

	gen := generator.New(llm, generator.Options{
		MaxTokens:          cfg.MaxTokens,
		Temperature:        &cfg.Temperature,
		MaxIterations:      cfg.MaxIterations,
		ContinuationWindow: cfg.ContinuationWindow,
	})

	return cloner.New(launcher, gen, cloner.Options{
		PageDelay:   cfg.PageDelay,
		PageTimeout: cfg.PageTimeout,
		Extract: snapshot.Options{
			NavigationTimeout: cfg.NavigationTimeout,
			Screenshot:        cfg.Screenshot,
		},
		Discovery: crawl.Options{
			VisitTimeout: cfg.DiscoveryTimeout,
		},
	}), nil
}

func normalizeURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("URL cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}

	if parsedURL.Scheme == "" {
		return "", fmt.Errorf("URL must include a scheme (http:// or https://)")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https")
	}

	if parsedURL.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}

	return parsedURL.String(), nil
}
