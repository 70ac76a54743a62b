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

// Package gollm wraps the language model providers behind a single text completion interface.
package gollm

import (
	"context"
	"fmt"
)

// Prompt is a system instruction and user message pair.
type Prompt struct {
	System string
	User   string
}

// Completer returns a text completion for a prompt.
//
// The returned text may be truncated when the model reaches maxTokens; that is
// not an error. Transport failures are returned after the provider's own retries.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt, maxTokens int64, temperature float64) (string, error)
}

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config selects and configures a provider.
type Config struct {
	Provider   string
	APIKey     string
	Model      string
	MaxRetries int
}

// New returns the [Completer] for cfg.Provider.
func New(cfg Config) (Completer, error) {
	switch cfg.Provider {
	case ProviderAnthropic, "":
		return NewAnthropicClient(cfg.APIKey, cfg.Model, cfg.MaxRetries), nil
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.MaxRetries), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
