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
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-json-experiment/json"
)

const browserbaseAPIURL = "https://api.browserbase.com"

// BrowserbaseLauncher creates a remote Browserbase session and connects to it over CDP.
// Any failure falls back to Fallback.
type BrowserbaseLauncher struct {
	APIKey    string
	ProjectID string
	// APIURL overrides the Browserbase API endpoint.
	APIURL string
	// Connect returns a launcher attached to the session's DevTools WebSocket URL.
	Connect  func(wsURL string) Launcher
	Fallback Launcher

	HTTPClient *http.Client
	Logger     *slog.Logger
}

var _ Launcher = (*BrowserbaseLauncher)(nil)

type browserbaseSession struct {
	ID         string `json:"id"`
	ConnectURL string `json:"connectUrl"`
}

// Launch implements [Launcher].
func (l *BrowserbaseLauncher) Launch(ctx context.Context) (Browser, error) {
	logger := l.logger()

	b, err := l.launchRemote(ctx)
	if err == nil {
		logger.InfoContext(ctx, "Successfully initialized Browserbase browser")
		return b, nil
	}

	logger.ErrorContext(ctx, "Failed to initialize Browserbase", "error", err)
	if l.Fallback == nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Falling back to local browser")
	return l.Fallback.Launch(ctx)
}

func (l *BrowserbaseLauncher) launchRemote(ctx context.Context) (Browser, error) {
	session, err := l.createSession(ctx)
	if err != nil {
		return nil, err
	}

	b, err := l.Connect(session.ConnectURL).Launch(ctx)
	if err != nil {
		l.releaseSession(session.ID)
		return nil, err
	}

	return &browserbaseBrowser{Browser: b, release: func() { l.releaseSession(session.ID) }}, nil
}

func (l *BrowserbaseLauncher) createSession(ctx context.Context) (*browserbaseSession, error) {
	body, err := json.Marshal(map[string]string{"projectId": l.ProjectID})
	if err != nil {
		return nil, fmt.Errorf("encode session request: %w", err)
	}

	resp, err := l.do(ctx, http.MethodPost, "/v1/sessions", body)
	if err != nil {
		return nil, fmt.Errorf("create browserbase session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("create browserbase session: status %d: %s", resp.StatusCode, msg)
	}

	var session browserbaseSession
	if err := json.UnmarshalRead(resp.Body, &session); err != nil {
		return nil, fmt.Errorf("decode browserbase session: %w", err)
	}
	if session.ConnectURL == "" {
		return nil, fmt.Errorf("browserbase session %s has no connect URL", session.ID)
	}

	l.logger().InfoContext(ctx, "Created Browserbase session", "session_id", session.ID)
	return &session, nil
}

// releaseSession asks Browserbase to end the session; errors are only logged.
func (l *BrowserbaseLauncher) releaseSession(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	body, err := json.Marshal(map[string]string{"projectId": l.ProjectID, "status": "REQUEST_RELEASE"})
	if err != nil {
		return
	}
	resp, err := l.do(ctx, http.MethodPost, "/v1/sessions/"+id, body)
	if err != nil {
		l.logger().WarnContext(ctx, "Failed to release Browserbase session", "session_id", id, "error", err)
		return
	}
	resp.Body.Close()
}

func (l *BrowserbaseLauncher) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	base := l.APIURL
	if base == "" {
		base = browserbaseAPIURL
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-BB-API-Key", l.APIKey)

	client := l.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return client.Do(req)
}

func (l *BrowserbaseLauncher) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default().WithGroup("browserbase")
	}
	return l.Logger
}

// browserbaseBrowser releases the remote session after the CDP connection is closed.
type browserbaseBrowser struct {
	Browser
	release func()
}

func (b *browserbaseBrowser) Close() error {
	err := b.Browser.Close()
	b.release()
	return err
}
