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

package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	firecrawl "github.com/mendableai/firecrawl-go/v2"
)

const firecrawlAPIURL = "https://api.firecrawl.dev"

// FirecrawlLauncher captures pages through the Firecrawl scrape API instead of a local browser.
//
// Firecrawl renders the page remotely and returns its raw markup; it cannot
// evaluate scripts, so [Page.Eval] and [Page.Screenshot] report [ErrUnsupported].
type FirecrawlLauncher struct {
	APIKey string
	APIURL string
	Logger *slog.Logger
}

var _ Launcher = (*FirecrawlLauncher)(nil)

// Launch initializes a new [*firecrawl.FirecrawlApp] given an API key.
func (l *FirecrawlLauncher) Launch(ctx context.Context) (Browser, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default().WithGroup("firecrawl")
	}

	apiURL := l.APIURL
	if apiURL == "" {
		apiURL = firecrawlAPIURL
	}

	client, err := firecrawl.NewFirecrawlApp(l.APIKey, apiURL)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize FirecrawlApp", "error", err)
		return nil, &Error{Op: "launch", Err: fmt.Errorf("initialize FirecrawlApp: %w", err)}
	}

	return &firecrawlBrowser{client: client, logger: logger}, nil
}

type firecrawlBrowser struct {
	client *firecrawl.FirecrawlApp
	logger *slog.Logger
}

func (b *firecrawlBrowser) NewPage(context.Context) (Page, error) {
	return &firecrawlPage{browser: b}, nil
}

func (b *firecrawlBrowser) Close() error { return nil }

type firecrawlPage struct {
	browser *firecrawlBrowser
	url     string
	html    string
}

func (p *firecrawlPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p.browser.logger.DebugContext(ctx, "Scraping URL", "url", url)

	onlyMainContent := false
	timeoutMS := int(timeout / time.Millisecond)
	params := &firecrawl.ScrapeParams{
		Formats:         []string{"rawHtml"},
		OnlyMainContent: &onlyMainContent,
		Timeout:         &timeoutMS,
	}

	// The Firecrawl client has no context support; the result is dropped when ctx ends first.
	type result struct {
		doc *firecrawl.FirecrawlDocument
		err error
	}
	done := make(chan result, 1)
	go func() {
		doc, err := p.browser.client.ScrapeURL(url, params)
		done <- result{doc: doc, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return &Error{Op: "navigate", URL: url, Err: ctx.Err()}
	case res = <-done:
	}

	if res.err != nil {
		p.browser.logger.ErrorContext(ctx, "Failed to scrape URL", "url", url, "error", res.err)
		return &Error{Op: "navigate", URL: url, Err: res.err}
	}
	if res.doc == nil || res.doc.RawHTML == "" {
		return &Error{Op: "navigate", URL: url, Err: errors.New("no raw HTML returned")}
	}

	p.url = url
	p.html = res.doc.RawHTML
	return nil
}

func (p *firecrawlPage) URL() string { return p.url }

func (p *firecrawlPage) HTML(context.Context) (string, error) {
	if p.html == "" {
		return "", &Error{Op: "read markup", URL: p.url, Err: errors.New("page has not been navigated")}
	}
	return p.html, nil
}

func (p *firecrawlPage) Eval(context.Context, string, any) error {
	return &Error{Op: "evaluate", URL: p.url, Err: ErrUnsupported}
}

func (p *firecrawlPage) Screenshot(context.Context) ([]byte, error) {
	return nil, &Error{Op: "screenshot", URL: p.url, Err: ErrUnsupported}
}

func (p *firecrawlPage) Close() error {
	p.html = ""
	return nil
}
