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

package gollm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

type anthropicClient struct {
	client anthropic.Client
	model  string
	logger *slog.Logger
}

var _ Completer = (*anthropicClient)(nil)

// NewAnthropicClient creates a new instance of [Completer] given the API key, model, retry budget and request options.
func NewAnthropicClient(apiKey, model string, maxRetries int, opts ...option.RequestOption) *anthropicClient {
	if model == "" {
		model = DefaultAnthropicModel
	}
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(maxRetries),
	}, opts...)

	return &anthropicClient{
		client: anthropic.NewClient(opts...),
		model:  model,
		logger: slog.Default().WithGroup("anthropic"),
	}
}

// Complete streams a message for prompt and returns its concatenated text.
//
// Complete implements [Completer].
func (c *anthropicClient) Complete(ctx context.Context, prompt Prompt, maxTokens int64, temperature float64) (string, error) {
	c.logger.DebugContext(ctx, "Requesting completion",
		slog.String("model", c.model),
		slog.Int64("max_tokens", maxTokens),
		slog.Group("prompt",
			slog.String("system", prompt.System),
			slog.Int("user_len", len(prompt.User)),
		),
	)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
		System: []anthropic.TextBlockParam{
			{
				Text: prompt.System,
			},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.User)),
		},
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var message anthropic.Message
	for stream.Next() {
		if err := message.Accumulate(stream.Current()); err != nil {
			c.logger.ErrorContext(ctx, "Failed to accumulate stream event", slog.Any("error", err))
			return "", fmt.Errorf("accumulate message: %w", err)
		}
	}
	if err := stream.Err(); err != nil {
		c.logger.ErrorContext(ctx, "Failed to get message with stream", slog.Any("error", err))
		return "", fmt.Errorf("get message with stream: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	if message.StopReason == anthropic.StopReasonMaxTokens {
		c.logger.InfoContext(ctx, "Completion truncated at max tokens", slog.Int64("output_tokens", message.Usage.OutputTokens))
	}

	return sb.String(), nil
}
