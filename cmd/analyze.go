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

package cmd

import (
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Print the captured design context of a page as JSON",
	Args:  cobra.ExactArgs(1),
	Annotations: map[string]string{
		annotationCaptureOnly: "true",
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		targetURL, err := normalizeURL(args[0])
		if err != nil {
			return fmt.Errorf("normalize URL: %w", err)
		}

		c, err := newCloner(cfg)
		if err != nil {
			return err
		}

		dc, err := c.Analyze(cmd.Context(), targetURL)
		if err != nil {
			return fmt.Errorf("analyze page: %w", err)
		}

		if err := json.MarshalWrite(cmd.OutOrStdout(), dc, json.Deterministic(true), jsontext.WithIndent("  ")); err != nil {
			return fmt.Errorf("write design context: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}
