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

// Package capturetest provides an in-memory site that implements the capture interfaces.
package capturetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-json-experiment/json"

	"github.com/peonyhq/peony/capture"
)

// ErrNotFound is returned when navigating to a URL the [Site] does not serve.
var ErrNotFound = errors.New("page not found")

// Document is one page served by a [Site].
type Document struct {
	Markup string
	// Evals maps a script to the value its evaluation returns.
	// Scripts that are not listed fail with [capture.ErrUnsupported].
	Evals map[string]any
	// Err makes navigation to the document fail.
	Err error
}

// Site is a fake [capture.Launcher] serving fixed documents.
type Site struct {
	Docs map[string]Document
	// LaunchErr makes Launch fail.
	LaunchErr error

	mu        sync.Mutex
	launches  int
	closes    int
	openPages int
	visits    []string
}

var _ capture.Launcher = (*Site)(nil)

// Launch implements [capture.Launcher].
func (s *Site) Launch(context.Context) (capture.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LaunchErr != nil {
		return nil, s.LaunchErr
	}
	s.launches++
	return &browser{site: s}, nil
}

// Launches reports how many browsers were launched.
func (s *Site) Launches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launches
}

// Closes reports how many browsers were closed.
func (s *Site) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// OpenPages reports pages opened but not yet closed.
func (s *Site) OpenPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openPages
}

// Visits returns navigated URLs in order.
func (s *Site) Visits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visits...)
}

type browser struct {
	site *Site
}

func (b *browser) NewPage(context.Context) (capture.Page, error) {
	b.site.mu.Lock()
	b.site.openPages++
	b.site.mu.Unlock()
	return &page{site: b.site}, nil
}

func (b *browser) Close() error {
	b.site.mu.Lock()
	b.site.closes++
	b.site.mu.Unlock()
	return nil
}

type page struct {
	site   *Site
	url    string
	doc    Document
	closed bool
}

func (p *page) Navigate(ctx context.Context, url string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return &capture.Error{Op: "navigate", URL: url, Err: err}
	}

	p.site.mu.Lock()
	p.site.visits = append(p.site.visits, url)
	doc, ok := p.site.Docs[url]
	p.site.mu.Unlock()

	switch {
	case !ok:
		return &capture.Error{Op: "navigate", URL: url, Err: ErrNotFound}
	case doc.Err != nil:
		return &capture.Error{Op: "navigate", URL: url, Err: doc.Err}
	}
	p.url = url
	p.doc = doc
	return nil
}

func (p *page) URL() string { return p.url }

func (p *page) HTML(context.Context) (string, error) {
	return p.doc.Markup, nil
}

func (p *page) Eval(_ context.Context, script string, out any) error {
	v, ok := p.doc.Evals[script]
	if !ok {
		return &capture.Error{Op: "evaluate", URL: p.url, Err: capture.ErrUnsupported}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (p *page) Screenshot(context.Context) ([]byte, error) {
	return []byte("png"), nil
}

func (p *page) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.site.mu.Lock()
	p.site.openPages--
	p.site.mu.Unlock()
	return nil
}
