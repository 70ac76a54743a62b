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
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ChromedpLauncher starts a Chrome controlled through chromedp.
type ChromedpLauncher struct {
	// RemoteURL connects to a running Chrome instead of launching one.
	RemoteURL string
	Logger    *slog.Logger
}

var _ Launcher = (*ChromedpLauncher)(nil)

// Launch allocates a browser and starts it.
func (l *ChromedpLauncher) Launch(ctx context.Context) (Browser, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default().WithGroup("chromedp")
	}

	// Detached from ctx so Close can still tear the browser down after cancellation.
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if l.RemoteURL != "" {
		logger.InfoContext(ctx, "Connecting to remote chrome", "url", l.RemoteURL)
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), l.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.UserAgent(defaultUserAgent),
			chromedp.WindowSize(viewportWidth, viewportHeight),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	// The first Run must use the context from NewContext: it owns the browser process.
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, &Error{Op: "launch", Err: err}
	}
	logger.InfoContext(ctx, "Started chrome", "remote", l.RemoteURL != "")

	return &chromedpBrowser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
	}, nil
}

// runWithin runs actions on target while honoring the cancellation of ctx and an optional timeout.
func runWithin(ctx, target context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(target)
	defer cancel()
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

type chromedpBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

func (b *chromedpBrowser) NewPage(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.ctx)
	idle := newIdleTracker()
	chromedp.ListenTarget(tabCtx, idle.handle)
	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		cancel()
		return nil, &Error{Op: "new page", Err: err}
	}
	return &chromedpPage{ctx: tabCtx, cancel: cancel, idle: idle}, nil
}

func (b *chromedpBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	return err
}

type chromedpPage struct {
	ctx    context.Context
	cancel context.CancelFunc
	idle   *idleTracker
	url    string
}

func (p *chromedpPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	var location string
	p.idle.reset()
	err := runWithin(ctx, p.ctx, timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return p.idle.wait(ctx, networkIdle)
		}),
		chromedp.Location(&location),
	)
	if err != nil {
		return &Error{Op: "navigate", URL: url, Err: err}
	}

	p.url = url
	if location != "" {
		p.url = location
	}
	return nil
}

func (p *chromedpPage) URL() string { return p.url }

func (p *chromedpPage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := runWithin(ctx, p.ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", &Error{Op: "read markup", URL: p.url, Err: err}
	}
	return html, nil
}

func (p *chromedpPage) Eval(ctx context.Context, script string, out any) error {
	// Evaluate takes an expression, so the function is invoked in place.
	if err := runWithin(ctx, p.ctx, 0, chromedp.Evaluate("("+script+")()", out)); err != nil {
		return &Error{Op: "evaluate", URL: p.url, Err: err}
	}
	return nil
}

func (p *chromedpPage) Screenshot(ctx context.Context) ([]byte, error) {
	var img []byte
	if err := runWithin(ctx, p.ctx, 0, chromedp.FullScreenshot(&img, 90)); err != nil {
		return nil, &Error{Op: "screenshot", URL: p.url, Err: err}
	}
	return img, nil
}

func (p *chromedpPage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}

// streamingResources stay open for the life of a page and never count as in flight.
var streamingResources = map[network.ResourceType]bool{
	network.ResourceTypeWebSocket:   true,
	network.ResourceTypeEventSource: true,
	network.ResourceTypeMedia:       true,
}

// idleTracker follows the network requests of a tab to tell when it has settled.
type idleTracker struct {
	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
	last     time.Time
	changed  chan struct{}
}

func newIdleTracker() *idleTracker {
	return &idleTracker{
		inflight: make(map[network.RequestID]struct{}),
		last:     time.Now(),
		changed:  make(chan struct{}, 1),
	}
}

// handle is a chromedp target listener.
func (t *idleTracker) handle(ev any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		if streamingResources[e.Type] {
			return
		}
		t.inflight[e.RequestID] = struct{}{}
	case *network.EventLoadingFinished:
		delete(t.inflight, e.RequestID)
	case *network.EventLoadingFailed:
		delete(t.inflight, e.RequestID)
	default:
		return
	}
	t.last = time.Now()

	select {
	case t.changed <- struct{}{}:
	default:
	}
}

// reset forgets the requests of the previous document.
func (t *idleTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.inflight)
	t.last = time.Now()
}

// wait blocks until no request has been in flight for idle, or ctx ends.
func (t *idleTracker) wait(ctx context.Context, idle time.Duration) error {
	for {
		t.mu.Lock()
		n := len(t.inflight)
		quiet := time.Since(t.last)
		t.mu.Unlock()

		delay := idle
		if n == 0 {
			if quiet >= idle {
				return nil
			}
			delay = idle - quiet
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.changed:
		case <-time.After(delay):
		}
	}
}
