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

// Package generator produces a standalone HTML document from a captured design
// context using a language model with a bounded output length.
//
// Generation proceeds as:
//  1. A single-pass attempt asking for the whole document
//  2. A completeness check on the sanitized response
//  3. When incomplete, a continuation loop that restarts the document and
//     repeatedly asks the model to resume from the trailing window
//  4. A best-effort repair adding any missing doctype or closing tags
package generator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/peonyhq/peony/gollm"
	"github.com/peonyhq/peony/snapshot"
)

// New creates a new instance of Generator with the provided completion client and options.
func New(llm gollm.Completer, opts Options) *Generator {
	opts.defaults()
	return &Generator{
		llm:  llm,
		opts: opts,
	}
}

// Generate returns a complete HTML document reproducing dc.
//
// Truncated responses are continued up to Options.MaxIterations times and the
// result is repaired; a document that is still incomplete is returned as is.
// Completion failures are returned as [*Error]. An empty result is
// reported as [ErrEmptyDocument].
func (g *Generator) Generate(ctx context.Context, dc *snapshot.DesignContext) (string, error) {
	logger := g.opts.Logger

	doc, err := g.singlePass(ctx, dc)
	if err != nil {
		return "", err
	}

	if !IsComplete(doc) {
		logger.InfoContext(ctx, "Initial generation incomplete, using continuation approach", "url", dc.URL, "len", len(doc))
		doc, err = g.continuation(ctx, dc)
		if err != nil {
			return "", err
		}
	}

	doc = Repair(doc)
	if strings.TrimSpace(doc) == "" {
		return "", ErrEmptyDocument
	}

	logger.InfoContext(ctx, "Generated document", "url", dc.URL, "len", len(doc), "complete", IsComplete(doc))
	return doc, nil
}

func (g *Generator) singlePass(ctx context.Context, dc *snapshot.DesignContext) (string, error) {
	prompt, err := SinglePassPrompt(dc)
	if err != nil {
		return "", &Error{Stage: StageSinglePass, Err: err}
	}

	raw, err := g.complete(ctx, gollm.Prompt{System: singlePassSystemPrompt, User: prompt})
	if err != nil {
		return "", &Error{Stage: StageSinglePass, Err: err}
	}
	return Sanitize(raw), nil
}

// continuation regenerates the document in truncation-tolerant pieces.
func (g *Generator) continuation(ctx context.Context, dc *snapshot.DesignContext) (string, error) {
	logger := g.opts.Logger

	prompt, err := InitialPrompt(dc)
	if err != nil {
		return "", &Error{Stage: StageInitial, Err: err}
	}
	raw, err := g.complete(ctx, gollm.Prompt{System: initialSystemPrompt, User: prompt})
	if err != nil {
		return "", &Error{Stage: StageInitial, Err: err}
	}

	doc := Sanitize(raw)
	for i := 1; i < g.opts.MaxIterations && !IsComplete(doc); i++ {
		logger.DebugContext(ctx, "Requesting continuation", "url", dc.URL, "iteration", i, "len", len(doc))

		raw, err := g.complete(ctx, gollm.Prompt{
			System: continuationSystemPrompt,
			User:   ContinuationPrompt(doc, g.opts.ContinuationWindow),
		})
		if err != nil {
			return "", &Error{Stage: StageContinuation, Iteration: i, Err: err}
		}
		doc = Merge(doc, Sanitize(raw))

		logger.InfoContext(ctx, "Continuation iteration completed", "url", dc.URL, "iteration", i, "complete", IsComplete(doc))
	}

	if !IsComplete(doc) {
		logger.WarnContext(ctx, "Continuation budget exhausted, repairing incomplete document",
			slog.String("url", dc.URL), slog.Int("iterations", g.opts.MaxIterations))
	}
	return doc, nil
}

func (g *Generator) complete(ctx context.Context, prompt gollm.Prompt) (string, error) {
	return g.llm.Complete(ctx, prompt, g.opts.MaxTokens, *g.opts.Temperature)
}
