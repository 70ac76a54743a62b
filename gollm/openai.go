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

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4.1"

type openaiClient struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

var _ Completer = (*openaiClient)(nil)

// NewOpenAIClient creates a new instance of [Completer] given the API key, model, retry budget and request options.
func NewOpenAIClient(apiKey, model string, maxRetries int, opts ...option.RequestOption) *openaiClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(maxRetries),
	}, opts...)
	client := openai.NewClient(opts...)

	return &openaiClient{
		client: &client,
		model:  model,
		logger: slog.Default().WithGroup("openai"),
	}
}

// Complete returns the first choice of a chat completion for prompt.
//
// Complete implements [Completer].
func (c *openaiClient) Complete(ctx context.Context, prompt Prompt, maxTokens int64, temperature float64) (string, error) {
	c.logger.DebugContext(ctx, "Requesting completion",
		slog.String("model", c.model),
		slog.Int64("max_tokens", maxTokens),
		slog.Group("prompt",
			slog.String("system", prompt.System),
			slog.Int("user_len", len(prompt.User)),
		),
	)

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
		MaxCompletionTokens: openai.Int(maxTokens),
	}
	// Reasoning models only accept the default temperature.
	if !strings.HasPrefix(c.model, "o") && !strings.HasPrefix(c.model, "gpt-5") {
		params.Temperature = openai.Float(temperature)
	}

	chatCompletion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to generate completion", slog.Any("error", err))
		return "", fmt.Errorf("generate completion: %w", err)
	}
	if len(chatCompletion.Choices) == 0 {
		c.logger.ErrorContext(ctx, "No choices returned from OpenAI")
		return "", fmt.Errorf("no choices returned")
	}

	choice := chatCompletion.Choices[0]
	if choice.FinishReason == "length" {
		c.logger.InfoContext(ctx, "Completion truncated at max tokens", slog.Int64("completion_tokens", chatCompletion.Usage.CompletionTokens))
	}

	return choice.Message.Content, nil
}
