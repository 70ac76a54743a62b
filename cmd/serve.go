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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/peonyhq/peony/api"
	"github.com/peonyhq/peony/config"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the clone HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd)
	},
}

func init() {
	d := config.New()
	serveCmd.Flags().String(config.KeyAddr, d.Addr, "Address to listen on")
	serveCmd.Flags().StringSlice(config.KeyAllowedOrigins, d.AllowedOrigins, "CORS allowed origins")
	serveCmd.Flags().Int(config.KeyDefaultMaxPages, d.DefaultMaxPages, "max_pages used when a multipage request omits it")
	serveCmd.Flags().Int(config.KeyMaxPagesLimit, d.MaxPagesLimit, "Largest accepted max_pages")
	serveCmd.Flags().Duration(config.KeyRequestTimeout, d.RequestTimeout, "Timeout of each clone request (0 for unlimited)")
}

func serve(cmd *cobra.Command) error {
	logger := slog.Default()

	c, err := newCloner(cfg)
	if err != nil {
		return err
	}

	srv := api.New(c, api.Options{
		AllowedOrigins:  cfg.AllowedOrigins,
		DefaultMaxPages: cfg.DefaultMaxPages,
		MaxPagesLimit:   cfg.MaxPagesLimit,
		RequestTimeout:  cfg.RequestTimeout,
	}).HTTPServer(cfg.Addr)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		logger.InfoContext(ctx, "Starting server", "addr", cfg.Addr, "provider", cfg.Provider, "browser_driver", cfg.BrowserDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.InfoContext(ctx, "Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.InfoContext(cmd.Context(), "Server stopped")
	return nil
}
