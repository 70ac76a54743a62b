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

// Package cloner sequences page discovery, design context extraction and
// document generation into single-page and whole-site clones.
//
// Every operation owns one browser for its whole duration and closes it
// before returning. Pages of a site are processed strictly one at a time.
package cloner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/peonyhq/peony/capture"
	"github.com/peonyhq/peony/crawl"
	"github.com/peonyhq/peony/generator"
	"github.com/peonyhq/peony/snapshot"
)

// ErrNoPagesCloned is returned by [Cloner.CloneSite] when every page failed.
var ErrNoPagesCloned = errors.New("no pages were successfully cloned")

// Stage is a progress step reported by [Cloner.ClonePage].
type Stage string

const (
	StageExtracting Stage = "extracting"
	StageGenerating Stage = "generating"
)

// ProgressFunc receives progress updates. It is called synchronously.
type ProgressFunc func(stage Stage)

// PageFailure records a page skipped during a site clone.
type PageFailure struct {
	URL string
	Err error
}

// SiteResult is the outcome of [Cloner.CloneSite].
type SiteResult struct {
	// Pages maps a path key to its generated document.
	Pages map[string]string
	// Order lists the keys of Pages in the order they were first inserted.
	Order      []string
	Failures   []PageFailure
	Discovered int
}

// Options configures a [Cloner].
type Options struct {
	// PageDelay is the pause between pages of a site clone. Defaults to 1s.
	PageDelay time.Duration
	// PageTimeout bounds extraction plus generation of one page. Zero means no bound.
	PageTimeout time.Duration
	Extract     snapshot.Options
	Discovery   crawl.Options
	Logger      *slog.Logger
}

// Cloner clones websites.
type Cloner struct {
	launcher   capture.Launcher
	generator  *generator.Generator
	extractor  *snapshot.Extractor
	discoverer *crawl.Discoverer
	options    Options
	logger     *slog.Logger
}

const defaultPageDelay = time.Second

// New creates a new instance of Cloner with the provided capture launcher, document generator and options.
func New(launcher capture.Launcher, gen *generator.Generator, options Options) *Cloner {
	if options.PageDelay <= 0 {
		options.PageDelay = defaultPageDelay
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default().WithGroup("cloner")
	}
	if options.Extract.Logger == nil {
		options.Extract.Logger = logger
	}
	if options.Discovery.Logger == nil {
		options.Discovery.Logger = logger
	}

	return &Cloner{
		launcher:   launcher,
		generator:  gen,
		extractor:  snapshot.NewExtractor(options.Extract),
		discoverer: crawl.NewDiscoverer(options.Discovery),
		options:    options,
		logger:     logger,
	}
}

// withBrowser launches a browser, runs fn and closes the browser on every path.
func (c *Cloner) withBrowser(ctx context.Context, fn func(b capture.Browser) error) error {
	b, err := c.launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("initialize browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			c.logger.WarnContext(ctx, "Failed to close browser", "error", err)
		}
	}()
	return fn(b)
}

// ClonePage captures url and generates its clone.
func (c *Cloner) ClonePage(ctx context.Context, url string, progress ProgressFunc) (string, error) {
	var html string
	err := c.withBrowser(ctx, func(b capture.Browser) error {
		var err error
		html, err = c.clonePage(ctx, b, url, progress)
		return err
	})
	return html, err
}

// Analyze captures the design context of url without generating a clone.
func (c *Cloner) Analyze(ctx context.Context, url string) (*snapshot.DesignContext, error) {
	var dc *snapshot.DesignContext
	err := c.withBrowser(ctx, func(b capture.Browser) error {
		var err error
		dc, err = c.extractor.Extract(ctx, b, url)
		return err
	})
	return dc, err
}

// CloneSite discovers up to maxPages pages from baseURL and clones each of them.
//
// The process includes:
//  1. Launching one browser for the whole site
//  2. Discovering same-host pages breadth first
//  3. Extracting and generating each page in discovery order, pausing between pages
//
// A page that fails is logged, recorded in SiteResult.Failures and skipped.
// When no page succeeds the result is returned together with [ErrNoPagesCloned].
func (c *Cloner) CloneSite(ctx context.Context, baseURL string, maxPages int) (*SiteResult, error) {
	result := &SiteResult{Pages: make(map[string]string)}

	err := c.withBrowser(ctx, func(b capture.Browser) error {
		pages, err := c.discoverer.Discover(ctx, b, baseURL, maxPages)
		if err != nil {
			return fmt.Errorf("discover pages: %w", err)
		}
		result.Discovered = len(pages)
		c.logger.InfoContext(ctx, "Discovered pages to clone", "url", baseURL, "count", len(pages))

		for i, pageURL := range pages {
			if i > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(c.options.PageDelay):
				}
			}

			c.logger.InfoContext(ctx, "Cloning page", "page", i+1, "total", len(pages), "url", pageURL)

			html, err := c.clonePageWithTimeout(ctx, b, pageURL)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.ErrorContext(ctx, "Error cloning page", "url", pageURL, "error", err)
				result.Failures = append(result.Failures, PageFailure{URL: pageURL, Err: err})
				continue
			}

			key := PathKey(pageURL)
			if _, ok := result.Pages[key]; !ok {
				result.Order = append(result.Order, key)
			}
			result.Pages[key] = html
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Pages) == 0 {
		return result, ErrNoPagesCloned
	}
	return result, nil
}

func (c *Cloner) clonePageWithTimeout(ctx context.Context, b capture.Browser, pageURL string) (string, error) {
	if c.options.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.options.PageTimeout)
		defer cancel()
	}
	return c.clonePage(ctx, b, pageURL, nil)
}

func (c *Cloner) clonePage(ctx context.Context, b capture.Browser, pageURL string, progress ProgressFunc) (string, error) {
	if progress != nil {
		progress(StageExtracting)
	}
	dc, err := c.extractor.Extract(ctx, b, pageURL)
	if err != nil {
		return "", err
	}

	if progress != nil {
		progress(StageGenerating)
	}
	return c.generator.Generate(ctx, dc)
}

// PathKey returns the key a page is stored under in [SiteResult.Pages]:
// its URL path without surrounding slashes, or "index" for the root.
func PathKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "index"
	}
	key := strings.Trim(u.Path, "/")
	if key == "" {
		return "index"
	}
	return key
}
