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
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/go-json-experiment/json"
	openaioption "github.com/openai/openai-go/v2/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is an HTTP handler that records decoded JSON request bodies.
type recorder struct {
	status int
	body   string
	sse    bool

	mu       sync.Mutex
	paths    []string
	requests []map[string]any
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	_ = json.UnmarshalRead(r.Body, &req)

	rec.mu.Lock()
	rec.paths = append(rec.paths, r.URL.Path)
	rec.requests = append(rec.requests, req)
	rec.mu.Unlock()

	if rec.sse {
		w.Header().Set("Content-Type", "text/event-stream")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	if rec.status != 0 {
		w.WriteHeader(rec.status)
	}
	_, _ = w.Write([]byte(rec.body))
}

func (rec *recorder) last(t *testing.T) map[string]any {
	t.Helper()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.requests)
	return rec.requests[len(rec.requests)-1]
}

func TestNew(t *testing.T) {
	c, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &anthropicClient{}, c)
	assert.Equal(t, DefaultAnthropicModel, c.(*anthropicClient).model)

	c, err = New(Config{Provider: ProviderOpenAI, APIKey: "k", Model: "gpt-4.1-mini"})
	require.NoError(t, err)
	assert.IsType(t, &openaiClient{}, c)
	assert.Equal(t, "gpt-4.1-mini", c.(*openaiClient).model)

	_, err = New(Config{Provider: "mistral"})
	assert.Error(t, err)
}

const anthropicStream = `event: message_start
data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":1}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"<!DOCTYPE html>\n"}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"<html><body>"}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"max_tokens","stop_sequence":null},"usage":{"output_tokens":128}}

event: message_stop
data: {"type":"message_stop"}

`

func TestAnthropicComplete(t *testing.T) {
	rec := &recorder{body: anthropicStream, sse: true}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	c := NewAnthropicClient("sk-ant-test", "", 0, anthropicoption.WithBaseURL(srv.URL+"/"))
	got, err := c.Complete(context.Background(), Prompt{System: "be terse", User: "clone this"}, 128, 0.2)
	require.NoError(t, err)
	assert.Equal(t, "<!DOCTYPE html>\n<html><body>", got)

	req := rec.last(t)
	assert.Equal(t, DefaultAnthropicModel, req["model"])
	assert.EqualValues(t, 128, req["max_tokens"])
	assert.InDelta(t, 0.2, req["temperature"], 1e-9)
	assert.Equal(t, true, req["stream"])
	assert.Contains(t, rec.paths, "/v1/messages")
}

func TestAnthropicCompleteError(t *testing.T) {
	rec := &recorder{
		status: http.StatusBadRequest,
		body:   `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens too large"}}`,
	}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	c := NewAnthropicClient("sk-ant-test", "claude-test", 0, anthropicoption.WithBaseURL(srv.URL+"/"))
	got, err := c.Complete(context.Background(), Prompt{User: "x"}, 999999, 0.2)
	assert.Error(t, err)
	assert.Empty(t, got)
}

const openaiResponse = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4.1",
  "choices": [{
    "index": 0,
    "message": {"role": "assistant", "content": "<!DOCTYPE html><html></html>", "refusal": null},
    "logprobs": null,
    "finish_reason": "length"
  }],
  "usage": {"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30}
}`

func TestOpenAIComplete(t *testing.T) {
	tests := []struct {
		model           string
		wantTemperature bool
	}{
		{model: "gpt-4.1", wantTemperature: true},
		{model: "o3", wantTemperature: false},
		{model: "gpt-5-mini", wantTemperature: false},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			rec := &recorder{body: openaiResponse}
			srv := httptest.NewServer(rec)
			defer srv.Close()

			c := NewOpenAIClient("sk-test", tt.model, 0, openaioption.WithBaseURL(srv.URL+"/"))
			got, err := c.Complete(context.Background(), Prompt{System: "sys", User: "user"}, 15000, 0.2)
			require.NoError(t, err)
			assert.Equal(t, "<!DOCTYPE html><html></html>", got)

			req := rec.last(t)
			assert.Equal(t, tt.model, req["model"])
			assert.EqualValues(t, 15000, req["max_completion_tokens"])
			_, hasTemperature := req["temperature"]
			assert.Equal(t, tt.wantTemperature, hasTemperature)

			messages, ok := req["messages"].([]any)
			require.True(t, ok)
			require.Len(t, messages, 2)
			assert.Equal(t, "system", messages[0].(map[string]any)["role"])
			assert.Equal(t, "user", messages[1].(map[string]any)["role"])
			assert.True(t, strings.HasSuffix(rec.paths[0], "/chat/completions"))
		})
	}
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	rec := &recorder{body: `{"id":"x","object":"chat.completion","created":1,"model":"gpt-4.1","choices":[]}`}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	c := NewOpenAIClient("sk-test", "", 0, openaioption.WithBaseURL(srv.URL+"/"))
	_, err := c.Complete(context.Background(), Prompt{User: "x"}, 10, 0.2)
	assert.ErrorContains(t, err, "no choices")
}
