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

// Package crawl discovers same-origin pages of a website by breadth-first traversal.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/peonyhq/peony/capture"
)

// LinksScript returns the resolved href of every anchor in the document.
const LinksScript = `() => Array.from(document.querySelectorAll('a[href]')).map(a => a.href).filter(href => href)`

const defaultVisitTimeout = 15 * time.Second

// Options configures a [Discoverer].
type Options struct {
	// VisitTimeout bounds each page visit. Defaults to 15s.
	VisitTimeout time.Duration
	Logger       *slog.Logger
}

// Discoverer finds pages reachable from a base URL.
type Discoverer struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewDiscoverer returns a [Discoverer] configured by opts.
func NewDiscoverer(opts Options) *Discoverer {
	if opts.VisitTimeout <= 0 {
		opts.VisitTimeout = defaultVisitTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().WithGroup("crawl")
	}
	return &Discoverer{timeout: opts.VisitTimeout, logger: logger}
}

// Discover returns up to maxPages URLs on the same host as baseURL, in discovery order.
//
// The result always starts with baseURL. Pages that fail to load are skipped.
// When ctx ends the pages found so far are returned together with ctx.Err().
func (d *Discoverer) Discover(ctx context.Context, b capture.Browser, baseURL string, maxPages int) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	maxPages = max(maxPages, 1)

	discovered := []string{baseURL}
	seen := map[string]bool{normalize(base): true}
	queue := []string{baseURL}
	visited := make(map[string]bool)

	page, err := b.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := page.Close(); err != nil {
			d.logger.WarnContext(ctx, "Failed to close page", "error", err)
		}
	}()

	for len(queue) > 0 && len(discovered) < maxPages {
		if err := ctx.Err(); err != nil {
			return discovered, err
		}

		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		links, err := d.visit(ctx, page, current)
		if err != nil {
			if ctx.Err() != nil {
				return discovered, ctx.Err()
			}
			d.logger.WarnContext(ctx, "Error visiting page", "url", current, "error", err)
			continue
		}

		pageURL := base
		for _, raw := range []string{page.URL(), current} {
			if u, err := url.Parse(raw); err == nil && u.Host != "" {
				pageURL = u
				break
			}
		}

		for _, link := range links {
			if len(discovered) >= maxPages {
				break
			}
			u, ok := sameHost(base, pageURL, link)
			if !ok {
				continue
			}
			key := normalize(u)
			if seen[key] {
				continue
			}
			seen[key] = true
			discovered = append(discovered, key)
			queue = append(queue, key)
		}
	}

	d.logger.InfoContext(ctx, "Discovered pages", "url", baseURL, "count", len(discovered))
	return discovered, nil
}

// visit navigates page to pageURL and returns the hyperlink targets it contains.
func (d *Discoverer) visit(ctx context.Context, page capture.Page, pageURL string) ([]string, error) {
	visitCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := page.Navigate(visitCtx, pageURL, d.timeout); err != nil {
		return nil, err
	}

	var links []string
	err := page.Eval(visitCtx, LinksScript, &links)
	if err == nil {
		return links, nil
	}
	if !errors.Is(err, capture.ErrUnsupported) {
		return nil, err
	}

	markup, err := page.HTML(visitCtx)
	if err != nil {
		return nil, err
	}
	return parseLinks(markup)
}

// parseLinks returns the href attributes of anchors in markup, unresolved.
func parseLinks(markup string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href := strings.TrimSpace(s.AttrOr("href", "")); href != "" {
			links = append(links, href)
		}
	})
	return links, nil
}

// sameHost resolves link against pageURL and reports whether it is an http(s) URL on base's host.
func sameHost(base, pageURL *url.URL, link string) (*url.URL, bool) {
	ref, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return nil, false
	}
	u := pageURL.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if !strings.EqualFold(u.Host, base.Host) {
		return nil, false
	}
	return u, true
}

// normalize drops the fragment, which never selects a different document,
// and writes an empty path as "/".
func normalize(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	if c.Path == "" && c.Opaque == "" {
		c.Path = "/"
		c.RawPath = ""
	}
	return c.String()
}
