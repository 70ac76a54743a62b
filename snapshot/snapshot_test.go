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

package snapshot_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peonyhq/peony/capture"
	"github.com/peonyhq/peony/capture/capturetest"
	"github.com/peonyhq/peony/snapshot"
)

const pageURL = "https://example.com/"

const pageMarkup = `<!DOCTYPE html>
<html>
<head>
  <link rel="stylesheet" href="/main.css">
  <link rel="preload stylesheet" href="https://cdn.example.com/fonts.css">
  <link rel="icon" href="/favicon.ico">
  <style>body { margin: 0; }</style>
  <style>h1 { color: red; }</style>
</head>
<body>
  <h1>Title</h1>
  <img src="/logo.png" alt="Logo" width="120" height="40">
  <img src="hero.jpg">
</body>
</html>`

func newSite(doc capturetest.Document) *capturetest.Site {
	return &capturetest.Site{Docs: map[string]capturetest.Document{pageURL: doc}}
}

func launch(t *testing.T, site *capturetest.Site) capture.Browser {
	t.Helper()
	b, err := site.Launch(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestExtract(t *testing.T) {
	styles := map[string]snapshot.StyleSample{
		"BODY": {Color: "rgb(0, 0, 0)", BackgroundColor: "rgb(255, 255, 255)", Margin: "0px"},
		"H1":   {Color: "rgb(255, 0, 0)", FontSize: "32px", FontFamily: "serif"},
	}
	site := newSite(capturetest.Document{
		Markup: pageMarkup,
		Evals:  map[string]any{snapshot.ComputedStylesScript: styles},
	})
	b := launch(t, site)

	dc, err := snapshot.NewExtractor(snapshot.Options{}).Extract(context.Background(), b, pageURL)
	require.NoError(t, err)

	assert.Equal(t, pageURL, dc.URL)
	assert.False(t, dc.CapturedAt.IsZero())
	assert.Equal(t, pageMarkup, dc.Markup)
	assert.Equal(t, []string{"body { margin: 0; }", "h1 { color: red; }"}, dc.InlineStyles)
	assert.Equal(t, []string{"/main.css", "https://cdn.example.com/fonts.css"}, dc.StylesheetLinks)
	assert.Equal(t, []snapshot.Image{
		{Src: "/logo.png", Alt: "Logo", Width: "120", Height: "40"},
		{Src: "hero.jpg"},
	}, dc.Images)
	assert.Equal(t, styles, dc.ComputedStyles)
	assert.Nil(t, dc.Screenshot)

	assert.Zero(t, site.OpenPages(), "page must be closed")
}

func TestExtractScreenshot(t *testing.T) {
	site := newSite(capturetest.Document{Markup: pageMarkup})
	b := launch(t, site)

	dc, err := snapshot.NewExtractor(snapshot.Options{Screenshot: true}).Extract(context.Background(), b, pageURL)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), dc.Screenshot)
}

func TestExtractWithoutScriptEvaluation(t *testing.T) {
	site := newSite(capturetest.Document{Markup: pageMarkup})
	b := launch(t, site)

	dc, err := snapshot.NewExtractor(snapshot.Options{}).Extract(context.Background(), b, pageURL)
	require.NoError(t, err)
	assert.NotNil(t, dc.ComputedStyles)
	assert.Empty(t, dc.ComputedStyles)
	assert.Len(t, dc.Images, 2)
}

func TestExtractEmptyPage(t *testing.T) {
	site := newSite(capturetest.Document{Markup: "<html><body></body></html>"})
	b := launch(t, site)

	dc, err := snapshot.NewExtractor(snapshot.Options{}).Extract(context.Background(), b, pageURL)
	require.NoError(t, err)
	assert.NotNil(t, dc.InlineStyles)
	assert.NotNil(t, dc.StylesheetLinks)
	assert.NotNil(t, dc.Images)
	assert.Empty(t, dc.InlineStyles)
	assert.Empty(t, dc.StylesheetLinks)
	assert.Empty(t, dc.Images)
}

func TestExtractNavigationError(t *testing.T) {
	errTimeout := errors.New("navigation timeout")
	site := newSite(capturetest.Document{Err: errTimeout})
	b := launch(t, site)

	dc, err := snapshot.NewExtractor(snapshot.Options{}).Extract(context.Background(), b, pageURL)
	require.Error(t, err)
	assert.Nil(t, dc)
	assert.ErrorIs(t, err, errTimeout)

	var capErr *capture.Error
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "navigate", capErr.Op)
	assert.Equal(t, pageURL, capErr.URL)

	assert.Zero(t, site.OpenPages(), "page must be closed on failure")
}

func TestExtractUnknownURL(t *testing.T) {
	site := newSite(capturetest.Document{Markup: pageMarkup})
	b := launch(t, site)

	_, err := snapshot.NewExtractor(snapshot.Options{}).Extract(context.Background(), b, "https://example.com/missing")
	assert.ErrorIs(t, err, capturetest.ErrNotFound)
	assert.Zero(t, site.OpenPages())
}
