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

package generator

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/peonyhq/peony/gollm"
)

// ErrEmptyDocument is returned when the model produced nothing usable.
var ErrEmptyDocument = errors.New("generated document is empty")

// Stage names a step of the generation state machine.
type Stage string

const (
	StageSinglePass   Stage = "single-pass"
	StageInitial      Stage = "initial"
	StageContinuation Stage = "continuation"
)

// Error is a completion failure at a generation stage.
type Error struct {
	Stage     Stage
	Iteration int
	Err       error
}

func (e *Error) Error() string {
	if e.Stage == StageContinuation {
		return fmt.Sprintf("generate %s %d: %v", e.Stage, e.Iteration, e.Err)
	}
	return fmt.Sprintf("generate %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options configures a [Generator]. Zero values take the defaults.
type Options struct {
	// MaxTokens is the output ceiling of each completion request. Defaults to 15000.
	MaxTokens int64
	// Temperature of each completion request. Defaults to 0.2 when nil.
	Temperature *float64
	// MaxIterations bounds the continuation loop, including the initial request. Defaults to 4.
	MaxIterations int
	// ContinuationWindow is the number of trailing characters sent when asking the model to continue. Defaults to 800.
	ContinuationWindow int
	Logger             *slog.Logger
}

const (
	defaultMaxTokens          = 15000
	defaultTemperature        = 0.2
	defaultMaxIterations      = 4
	defaultContinuationWindow = 800
)

func (o *Options) defaults() {
	if o.MaxTokens <= 0 {
		o.MaxTokens = defaultMaxTokens
	}
	temp := defaultTemperature
	if o.Temperature != nil {
		temp = *o.Temperature
	}
	o.Temperature = &temp
	if o.MaxIterations <= 0 {
		o.MaxIterations = defaultMaxIterations
	}
	if o.ContinuationWindow <= 0 {
		o.ContinuationWindow = defaultContinuationWindow
	}
	if o.Logger == nil {
		o.Logger = slog.Default().WithGroup("generator")
	}
}

// Generator turns a design context into a standalone HTML document.
type Generator struct {
	llm  gollm.Completer
	opts Options
}
