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
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/peonyhq/peony/cloner"
)

var cloneCmd = &cobra.Command{
	Use:   "clone <url>",
	Short: "Clone a page or a whole site into HTML files",
	Long: `Clone captures <url> and writes the generated document to <output-dir>/<path>.html.

With --max-pages greater than 1, pages on the same host are discovered from <url>
and each of them is cloned in turn. Pages that fail are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return clone(cmd, args)
	},
}

var (
	cloneMaxPages  int
	cloneOutputDir string
)

func init() {
	cloneCmd.Flags().IntVar(&cloneMaxPages, "max-pages", 1, "Maximum number of pages to clone")
	cloneCmd.Flags().StringVar(&cloneOutputDir, "output-dir", ".", "Directory to save output files")
}

func clone(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	targetURL, err := normalizeURL(args[0])
	if err != nil {
		return fmt.Errorf("normalize URL: %w", err)
	}

	if err := os.MkdirAll(cloneOutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	c, err := newCloner(cfg)
	if err != nil {
		return err
	}

	var (
		pages map[string]string
		order []string
	)
	if cloneMaxPages <= 1 {
		html, err := c.ClonePage(ctx, targetURL, func(stage cloner.Stage) {
			logger.InfoContext(ctx, "Clone progress", "url", targetURL, "stage", stage)
		})
		if err != nil {
			return fmt.Errorf("clone page: %w", err)
		}
		key := cloner.PathKey(targetURL)
		pages = map[string]string{key: html}
		order = []string{key}
	} else {
		result, err := c.CloneSite(ctx, targetURL, cloneMaxPages)
		if err != nil {
			return fmt.Errorf("clone site: %w", err)
		}
		for _, f := range result.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "Failed to clone %s: %v\n", f.URL, f.Err)
		}
		pages, order = result.Pages, result.Order
	}

	for _, key := range order {
		path := filepath.Join(cloneOutputDir, fileName(key))
		if err := os.WriteFile(path, []byte(pages[key]), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		logger.InfoContext(ctx, "Saved clone", "key", key, "path", path)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nSuccess! Cloned %d page(s)\n", len(order))
	fmt.Fprintf(cmd.OutOrStdout(), "Files saved to %s/\n", cloneOutputDir)

	return nil
}

// fileName flattens a path key into a single file name inside the output directory.
func fileName(key string) string {
	return strings.ReplaceAll(key, "/", "_") + ".html"
}
