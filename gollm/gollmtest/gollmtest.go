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

// Package gollmtest provides a scripted [gollm.Completer] for tests.
package gollmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/peonyhq/peony/gollm"
)

// ErrExhausted is returned once every scripted reply has been consumed.
var ErrExhausted = errors.New("gollmtest: no scripted replies left")

// Reply is one scripted completion.
type Reply struct {
	Text string
	Err  error
}

// Call records one request made to a [Script].
type Call struct {
	Prompt      gollm.Prompt
	MaxTokens   int64
	Temperature float64
}

// Script replays Replies in order. When Repeat is set the last reply is reused indefinitely.
type Script struct {
	Replies []Reply
	Repeat  bool

	mu    sync.Mutex
	calls []Call
}

var _ gollm.Completer = (*Script)(nil)

// Texts returns a Script replying with each of texts in order.
func Texts(texts ...string) *Script {
	s := &Script{}
	for _, t := range texts {
		s.Replies = append(s.Replies, Reply{Text: t})
	}
	return s
}

// Complete implements [gollm.Completer].
func (s *Script) Complete(ctx context.Context, prompt gollm.Prompt, maxTokens int64, temperature float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	n := len(s.calls)
	s.calls = append(s.calls, Call{Prompt: prompt, MaxTokens: maxTokens, Temperature: temperature})

	switch {
	case n < len(s.Replies):
	case s.Repeat && len(s.Replies) > 0:
		n = len(s.Replies) - 1
	default:
		return "", ErrExhausted
	}
	r := s.Replies[n]
	return r.Text, r.Err
}

// Calls returns the recorded requests.
func (s *Script) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}
