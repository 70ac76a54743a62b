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
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// RodLauncher starts a Chrome controlled through go-rod.
type RodLauncher struct {
	// ControlURL connects to a running Chrome instead of launching one.
	ControlURL string
	Logger     *slog.Logger
}

var _ Launcher = (*RodLauncher)(nil)

// Launch starts a local headless Chrome, or connects to ControlURL when set.
func (l *RodLauncher) Launch(ctx context.Context) (Browser, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default().WithGroup("rod")
	}

	wsURL := l.ControlURL
	var lnch *launcher.Launcher
	if wsURL == "" {
		lnch = launcher.New().
			Context(ctx).
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")

		u, err := lnch.Launch()
		if err != nil {
			return nil, &Error{Op: "launch", Err: err}
		}
		wsURL = u
		logger.InfoContext(ctx, "Launched local chrome", "url", wsURL)
	} else {
		logger.InfoContext(ctx, "Connecting to remote chrome", "url", wsURL)
	}

	// The browser is not bound to ctx so Close can still reach it after cancellation.
	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, &Error{Op: "connect", Err: err}
	}

	return &rodBrowser{browser: b, launcher: lnch, logger: logger}, nil
}

type rodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	logger   *slog.Logger
}

func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	p, err := stealth.Page(b.browser)
	if err != nil {
		return nil, &Error{Op: "new page", Err: err}
	}

	if err := p.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  viewportWidth,
		Height: viewportHeight,
	}); err != nil {
		b.logger.WarnContext(ctx, "Failed to set viewport", "error", err)
	}
	if err := p.Context(ctx).SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: defaultUserAgent}); err != nil {
		b.logger.WarnContext(ctx, "Failed to set user agent", "error", err)
	}

	return &rodPage{page: p}, nil
}

func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	if b.launcher != nil {
		b.launcher.Cleanup()
	}
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

type rodPage struct {
	page *rod.Page
	url  string
}

func (p *rodPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page := p.page.Context(navCtx)
	wait := page.WaitRequestIdle(networkIdle, nil, nil, nil)
	if err := page.Navigate(url); err != nil {
		return &Error{Op: "navigate", URL: url, Err: err}
	}
	if err := page.WaitLoad(); err != nil {
		return &Error{Op: "wait load", URL: url, Err: err}
	}
	wait()
	if err := navCtx.Err(); err != nil {
		return &Error{Op: "wait idle", URL: url, Err: err}
	}

	p.url = url
	if info, err := page.Info(); err == nil && info.URL != "" {
		p.url = info.URL
	}
	return nil
}

func (p *rodPage) URL() string { return p.url }

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", &Error{Op: "read markup", URL: p.url, Err: err}
	}
	return html, nil
}

func (p *rodPage) Eval(ctx context.Context, script string, out any) error {
	res, err := p.page.Context(ctx).Eval(script)
	if err != nil {
		return &Error{Op: "evaluate", URL: p.url, Err: err}
	}
	if err := res.Value.Unmarshal(out); err != nil {
		return &Error{Op: "decode evaluation", URL: p.url, Err: err}
	}
	return nil
}

func (p *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	img, err := p.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, &Error{Op: "screenshot", URL: p.url, Err: err}
	}
	return img, nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
