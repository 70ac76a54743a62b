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

// Package capture provides the browser capability used to render and read web pages.
//
// The capability is split into three interfaces:
//   - [Launcher] starts (or connects to) a browser for the lifetime of one request
//   - [Browser] opens pages and is closed exactly once by its owner
//   - [Page] navigates, reads rendered markup and evaluates scripts
//
// Drivers are provided for a local or remote Chrome via go-rod, a Browserbase
// session, chromedp, and the Firecrawl scraping API.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrUnsupported is returned by drivers that cannot perform an operation,
// such as evaluating scripts against a hosted scrape.
var ErrUnsupported = errors.New("operation not supported by capture driver")

// Launcher initializes a [Browser].
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser is an initialized capture session. It is owned by a single request.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single browser tab.
type Page interface {
	// Navigate loads url and waits for the network to become idle, giving up after timeout.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// URL reports the current document URL after redirects.
	URL() string
	// HTML returns the serialized rendered document.
	HTML(ctx context.Context) (string, error)
	// Eval runs script, a JavaScript function expression, and decodes its JSON result into out.
	Eval(ctx context.Context, script string, out any) error
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Error records a failed capture operation and the URL it was applied to.
type Error struct {
	Op  string
	URL string
	Err error
}

func (e *Error) Error() string {
	if e.URL == "" {
		return "capture " + e.Op + ": " + e.Err.Error()
	}
	return fmt.Sprintf("capture %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Driver names accepted by [Config].
const (
	DriverRod       = "rod"
	DriverChromedp  = "chromedp"
	DriverFirecrawl = "firecrawl"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	viewportWidth    = 1920
	viewportHeight   = 1080

	// networkIdle is how long the page must go without requests to count as settled.
	networkIdle = 500 * time.Millisecond
)

// Config selects and configures a capture driver.
type Config struct {
	Driver string
	// RemoteURL is the DevTools WebSocket URL of an already running Chrome.
	// Empty launches a local headless Chrome.
	RemoteURL string

	BrowserbaseAPIKey    string
	BrowserbaseProjectID string
	BrowserbaseAPIURL    string

	FirecrawlAPIKey string

	Logger *slog.Logger
}

// NewLauncher returns the [Launcher] described by cfg.
//
// When Browserbase credentials are present the CDP drivers first try a remote
// Browserbase session and fall back to the locally configured browser.
func NewLauncher(cfg Config) (Launcher, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().WithGroup("capture")
	}

	var local Launcher
	var connect func(wsURL string) Launcher
	switch cfg.Driver {
	case DriverRod, "":
		local = &RodLauncher{ControlURL: cfg.RemoteURL, Logger: logger}
		connect = func(wsURL string) Launcher { return &RodLauncher{ControlURL: wsURL, Logger: logger} }
	case DriverChromedp:
		local = &ChromedpLauncher{RemoteURL: cfg.RemoteURL, Logger: logger}
		connect = func(wsURL string) Launcher { return &ChromedpLauncher{RemoteURL: wsURL, Logger: logger} }
	case DriverFirecrawl:
		if cfg.FirecrawlAPIKey == "" {
			return nil, fmt.Errorf("firecrawl driver requires an API key")
		}
		return &FirecrawlLauncher{APIKey: cfg.FirecrawlAPIKey, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown capture driver %q", cfg.Driver)
	}

	if cfg.BrowserbaseAPIKey == "" || cfg.BrowserbaseProjectID == "" {
		logger.Warn("Browserbase credentials not found, using local browser", "driver", cfg.Driver)
		return local, nil
	}

	return &BrowserbaseLauncher{
		APIKey:    cfg.BrowserbaseAPIKey,
		ProjectID: cfg.BrowserbaseProjectID,
		APIURL:    cfg.BrowserbaseAPIURL,
		Connect:   connect,
		Fallback:  local,
		Logger:    logger,
	}, nil
}
