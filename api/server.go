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

// Package api exposes the cloner over HTTP.
//
// Routes:
//   - POST /api/clone            single page clone
//   - POST /api/clone/multipage  site clone
//   - GET  /api/clone/stream     single page clone reported as server-sent events
//   - POST /api/analyze          design context capture
//   - GET  /healthz              liveness
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/peonyhq/peony/cloner"
	"github.com/peonyhq/peony/snapshot"
)

// Cloner is the set of clone operations served by [Server].
type Cloner interface {
	ClonePage(ctx context.Context, url string, progress cloner.ProgressFunc) (string, error)
	CloneSite(ctx context.Context, baseURL string, maxPages int) (*cloner.SiteResult, error)
	Analyze(ctx context.Context, url string) (*snapshot.DesignContext, error)
}

var _ Cloner = (*cloner.Cloner)(nil)

// Options configures a [Server].
type Options struct {
	// AllowedOrigins is the CORS allow-list. Defaults to http://localhost:3000.
	AllowedOrigins []string
	// DefaultMaxPages applies when a multipage request omits max_pages. Defaults to 5.
	DefaultMaxPages int
	// MaxPagesLimit is the largest accepted max_pages. Defaults to 20.
	MaxPagesLimit int
	// RequestTimeout bounds every clone operation. Zero means no bound.
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

const (
	defaultAllowedOrigin   = "http://localhost:3000"
	defaultMaxPages        = 5
	defaultMaxPagesLimit   = 20
	defaultReadHeaderLimit = 10 * time.Second
)

// Server is the HTTP front of a [Cloner].
type Server struct {
	cloner Cloner
	opts   Options
	logger *slog.Logger
	router chi.Router
}

var _ http.Handler = (*Server)(nil)

// New creates a new instance of Server with the provided cloner and options.
func New(c Cloner, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	if opts.DefaultMaxPages <= 0 {
		opts.DefaultMaxPages = defaultMaxPages
	}
	if opts.MaxPagesLimit <= 0 {
		opts.MaxPagesLimit = defaultMaxPagesLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().WithGroup("api")
	}

	s := &Server{
		cloner: c,
		opts:   opts,
		logger: opts.Logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&logFormatter{logger: s.logger}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/clone", s.handleClone)
		r.Post("/clone/multipage", s.handleCloneMultipage)
		r.Get("/clone/stream", s.handleCloneStream)
		r.Post("/analyze", s.handleAnalyze)
	})
	return r
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer returns an [http.Server] serving s on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: defaultReadHeaderLimit,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}
}

// withTimeout applies the configured request timeout to ctx.
func (s *Server) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.RequestTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// logFormatter bridges chi's request logger to slog.
type logFormatter struct {
	logger *slog.Logger
}

func (f *logFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &logEntry{
		logger: f.logger.With(
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
		),
		ctx: r.Context(),
	}
}

type logEntry struct {
	logger *slog.Logger
	ctx    context.Context
}

func (e *logEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ any) {
	e.logger.InfoContext(e.ctx, "Request completed",
		slog.Int("status", status),
		slog.Int("bytes", bytes),
		slog.Duration("elapsed", elapsed),
	)
}

func (e *logEntry) Panic(v any, stack []byte) {
	e.logger.ErrorContext(e.ctx, "Request panicked", "panic", v, "stack", string(stack))
}
