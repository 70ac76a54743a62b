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

// Package snapshot captures the design context of a rendered page: its markup,
// style blocks, stylesheet links, images, and a sample of computed styles.
package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/peonyhq/peony/capture"
)

// DesignContext is an immutable snapshot of one page at capture time.
type DesignContext struct {
	URL        string    `json:"url"`
	CapturedAt time.Time `json:"captured_at"`

	Markup          string   `json:"html"`
	InlineStyles    []string `json:"styles"`
	StylesheetLinks []string `json:"css_links"`
	Images          []Image  `json:"images"`

	// ComputedStyles is keyed by tag name, not by element: the last element of
	// each tag wins, so per-instance variation is lost.
	ComputedStyles map[string]StyleSample `json:"computed_styles"`

	Screenshot []byte `json:"screenshot,omitempty"`
}

// Image describes an img element as written in the markup.
type Image struct {
	Src    string `json:"src"`
	Alt    string `json:"alt"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
}

// StyleSample is the subset of computed style properties sampled per tag.
type StyleSample struct {
	Color           string `json:"color"`
	BackgroundColor string `json:"backgroundColor"`
	FontSize        string `json:"fontSize"`
	FontFamily      string `json:"fontFamily"`
	Margin          string `json:"margin"`
	Padding         string `json:"padding"`
}

// ComputedStylesScript samples computed styles for every element, keyed by tag name.
const ComputedStylesScript = `() => {
	const styles = {};
	document.querySelectorAll('*').forEach(el => {
		const computed = window.getComputedStyle(el);
		styles[el.tagName] = {
			color: computed.color,
			backgroundColor: computed.backgroundColor,
			fontSize: computed.fontSize,
			fontFamily: computed.fontFamily,
			margin: computed.margin,
			padding: computed.padding
		};
	});
	return styles;
}`

const defaultNavigationTimeout = 30 * time.Second

// Options configures an [Extractor].
type Options struct {
	// NavigationTimeout bounds page navigation. Defaults to 30s.
	NavigationTimeout time.Duration
	// Screenshot captures a full page screenshot alongside the markup.
	Screenshot bool
	Logger     *slog.Logger
}

// Extractor captures [DesignContext] records.
type Extractor struct {
	opts   Options
	logger *slog.Logger
}

// NewExtractor returns an [Extractor] configured by opts.
func NewExtractor(opts Options) *Extractor {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = defaultNavigationTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().WithGroup("snapshot")
	}
	return &Extractor{opts: opts, logger: logger}
}

// Extract opens a page on b, navigates to url and captures its design context.
// The page is closed before Extract returns.
func (e *Extractor) Extract(ctx context.Context, b capture.Browser, url string) (*DesignContext, error) {
	page, err := b.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := page.Close(); err != nil {
			e.logger.WarnContext(ctx, "Failed to close page", "url", url, "error", err)
		}
	}()

	e.logger.InfoContext(ctx, "Extracting design context", "url", url)

	if err := page.Navigate(ctx, url, e.opts.NavigationTimeout); err != nil {
		return nil, err
	}

	dc := &DesignContext{
		URL:        page.URL(),
		CapturedAt: time.Now().UTC(),
	}

	if e.opts.Screenshot {
		img, err := page.Screenshot(ctx)
		if err != nil {
			e.logger.WarnContext(ctx, "Failed to capture screenshot", "url", url, "error", err)
		}
		dc.Screenshot = img
	}

	markup, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	dc.Markup = markup

	if err := parseMarkup(dc); err != nil {
		return nil, &capture.Error{Op: "parse markup", URL: url, Err: err}
	}

	styles := make(map[string]StyleSample)
	if err := page.Eval(ctx, ComputedStylesScript, &styles); err != nil {
		if !errors.Is(err, capture.ErrUnsupported) {
			return nil, err
		}
		e.logger.WarnContext(ctx, "Computed styles unavailable from capture driver", "url", url)
	}
	dc.ComputedStyles = styles

	e.logger.DebugContext(ctx, "Extracted design context",
		"url", url,
		"markup_len", len(dc.Markup),
		"styles", len(dc.InlineStyles),
		"css_links", len(dc.StylesheetLinks),
		"images", len(dc.Images),
		"tags", len(dc.ComputedStyles),
	)

	return dc, nil
}

// parseMarkup fills the statically parsed fields of dc from dc.Markup.
func parseMarkup(dc *DesignContext) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(dc.Markup))
	if err != nil {
		return err
	}

	dc.InlineStyles = []string{}
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		dc.InlineStyles = append(dc.InlineStyles, s.Text())
	})

	dc.StylesheetLinks = []string{}
	doc.Find("link[rel~='stylesheet']").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			dc.StylesheetLinks = append(dc.StylesheetLinks, href)
		}
	})

	dc.Images = []Image{}
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		dc.Images = append(dc.Images, Image{
			Src:    s.AttrOr("src", ""),
			Alt:    s.AttrOr("alt", ""),
			Width:  s.AttrOr("width", ""),
			Height: s.AttrOr("height", ""),
		})
	})

	return nil
}
