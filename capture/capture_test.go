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

package capture_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peonyhq/peony/capture"
)

func TestErrorMessage(t *testing.T) {
	errIdle := errors.New("idle timeout")

	err := &capture.Error{Op: "navigate", URL: "https://example.com", Err: errIdle}
	assert.Equal(t, "capture navigate https://example.com: idle timeout", err.Error())
	assert.ErrorIs(t, err, errIdle)

	err = &capture.Error{Op: "launch", Err: errIdle}
	assert.Equal(t, "capture launch: idle timeout", err.Error())

	wrapped := fmt.Errorf("initialize browser: %w", &capture.Error{Op: "evaluate", Err: capture.ErrUnsupported})
	assert.ErrorIs(t, wrapped, capture.ErrUnsupported)
}

func TestNewLauncher(t *testing.T) {
	tests := []struct {
		name    string
		cfg     capture.Config
		want    any
		wantErr bool
	}{
		{name: "default", cfg: capture.Config{}, want: &capture.RodLauncher{}},
		{name: "rod", cfg: capture.Config{Driver: capture.DriverRod, RemoteURL: "ws://127.0.0.1:9222"}, want: &capture.RodLauncher{}},
		{name: "chromedp", cfg: capture.Config{Driver: capture.DriverChromedp}, want: &capture.ChromedpLauncher{}},
		{name: "firecrawl", cfg: capture.Config{Driver: capture.DriverFirecrawl, FirecrawlAPIKey: "fc-key"}, want: &capture.FirecrawlLauncher{}},
		{name: "firecrawl without key", cfg: capture.Config{Driver: capture.DriverFirecrawl}, wantErr: true},
		{name: "unknown driver", cfg: capture.Config{Driver: "selenium"}, wantErr: true},
		{
			name: "browserbase",
			cfg:  capture.Config{BrowserbaseAPIKey: "bb-key", BrowserbaseProjectID: "proj"},
			want: &capture.BrowserbaseLauncher{},
		},
		{
			name: "browserbase without project",
			cfg:  capture.Config{Driver: capture.DriverChromedp, BrowserbaseAPIKey: "bb-key"},
			want: &capture.ChromedpLauncher{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := capture.NewLauncher(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestNewLauncherRemoteURL(t *testing.T) {
	got, err := capture.NewLauncher(capture.Config{Driver: capture.DriverRod, RemoteURL: "ws://127.0.0.1:9222/devtools/browser/abc"})
	require.NoError(t, err)

	rl, ok := got.(*capture.RodLauncher)
	require.True(t, ok)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", rl.ControlURL)
}

func TestNewLauncherBrowserbaseFallback(t *testing.T) {
	got, err := capture.NewLauncher(capture.Config{
		Driver:               capture.DriverChromedp,
		BrowserbaseAPIKey:    "bb-key",
		BrowserbaseProjectID: "proj",
	})
	require.NoError(t, err)

	bl, ok := got.(*capture.BrowserbaseLauncher)
	require.True(t, ok)
	assert.IsType(t, &capture.ChromedpLauncher{}, bl.Fallback)
	require.NotNil(t, bl.Connect)

	remote, ok := bl.Connect("wss://connect.browserbase.com/session").(*capture.ChromedpLauncher)
	require.True(t, ok)
	assert.Equal(t, "wss://connect.browserbase.com/session", remote.RemoteURL)
}

func TestFirecrawlPageUnsupported(t *testing.T) {
	p := &capture.FirecrawlLauncher{APIKey: "fc-key", APIURL: "http://127.0.0.1:0"}
	b, err := p.Launch(context.Background())
	require.NoError(t, err)
	defer b.Close()

	page, err := b.NewPage(context.Background())
	require.NoError(t, err)
	defer page.Close()

	var out any
	assert.ErrorIs(t, page.Eval(context.Background(), "() => 1", &out), capture.ErrUnsupported)
	_, err = page.Screenshot(context.Background())
	assert.ErrorIs(t, err, capture.ErrUnsupported)

	_, err = page.HTML(context.Background())
	var capErr *capture.Error
	assert.ErrorAs(t, err, &capErr)
}
