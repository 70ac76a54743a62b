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

package api

import (
	"net/http"
	"time"

	"github.com/go-json-experiment/json"

	"github.com/peonyhq/peony/cloner"
	"github.com/peonyhq/peony/snapshot"
)

// maxBodyBytes bounds request bodies, which only carry a URL and a few options.
const maxBodyBytes = 1 << 20

type cloneRequest struct {
	URL string `json:"url"`
}

type cloneResponse struct {
	HTML string `json:"html"`
}

type multipageRequest struct {
	URL      string         `json:"url"`
	MaxPages *int           `json:"max_pages,omitzero"`
	Options  map[string]any `json:"options,omitzero"`
}

type multipageResponse struct {
	Success    bool              `json:"success"`
	Pages      map[string]string `json:"pages"`
	TotalPages int               `json:"total_pages"`
	Metadata   multipageMetadata `json:"metadata"`
}

type multipageMetadata struct {
	ProcessingTimeSeconds float64  `json:"processing_time_seconds"`
	TotalPagesCloned      int      `json:"total_pages_cloned"`
	TotalHTMLLength       int      `json:"total_html_length"`
	Timestamp             string   `json:"timestamp"`
	SourceURL             string   `json:"source_url"`
	PagesList             []string `json:"pages_list"`
	FailedPages           []string `json:"failed_pages"`
	DiscoveredPages       int      `json:"discovered_pages"`
}

type analyzeResponse struct {
	Success       bool                    `json:"success"`
	DesignContext *snapshot.DesignContext `json:"design_context"`
}

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClone(w http.ResponseWriter, r *http.Request) {
	var req cloneRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	target, err := normalizeURL(req.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	html, err := s.cloner.ClonePage(ctx, target, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, cloneResponse{HTML: html})
}

func (s *Server) handleCloneMultipage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req multipageRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	target, err := normalizeURL(req.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	maxPages := s.opts.DefaultMaxPages
	if req.MaxPages != nil {
		maxPages = *req.MaxPages
	}
	if maxPages < 1 || maxPages > s.opts.MaxPagesLimit {
		s.writeError(w, r, errBadRequest("max_pages must be between 1 and %d", s.opts.MaxPagesLimit))
		return
	}

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	s.logger.InfoContext(ctx, "Starting multi-page clone", "url", target, "max_pages", maxPages)

	result, err := s.cloner.CloneSite(ctx, target, maxPages)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	totalLen := 0
	for _, html := range result.Pages {
		totalLen += len(html)
	}
	failed := make([]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		failed = append(failed, f.URL)
	}
	pagesList := result.Order
	if pagesList == nil {
		pagesList = []string{}
	}

	elapsed := time.Since(start)
	s.logger.InfoContext(ctx, "Multi-page clone completed", "url", target, "pages", len(result.Pages), "failed", len(failed), "elapsed", elapsed)

	s.writeJSON(w, r, http.StatusOK, multipageResponse{
		Success:    true,
		Pages:      result.Pages,
		TotalPages: len(result.Pages),
		Metadata: multipageMetadata{
			ProcessingTimeSeconds: elapsed.Seconds(),
			TotalPagesCloned:      len(result.Pages),
			TotalHTMLLength:       totalLen,
			Timestamp:             timestamp(),
			SourceURL:             target,
			PagesList:             pagesList,
			FailedPages:           failed,
			DiscoveredPages:       result.Discovered,
		},
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req cloneRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	target, err := normalizeURL(req.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	dc, err := s.cloner.Analyze(ctx, target)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, analyzeResponse{Success: true, DesignContext: dc})
}

// streamFrame is one server-sent event of /api/clone/stream.
type streamFrame struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	HTML    string `json:"html,omitempty"`
}

const (
	statusStarting = "starting"
	statusComplete = "complete"
	statusError    = "error"
)

var stageMessages = map[cloner.Stage]string{
	cloner.StageExtracting: "Extracting design context...",
	cloner.StageGenerating: "Generating HTML...",
}

func (s *Server) handleCloneStream(w http.ResponseWriter, r *http.Request) {
	target, err := normalizeURL(r.URL.Query().Get("url"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// The request context is used so a client disconnect cancels the clone.
	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	stream := newEventStream(w)
	if err := stream.send(streamFrame{Status: statusStarting, Message: "Starting clone process..."}); err != nil {
		s.logger.WarnContext(ctx, "Failed to write stream frame", "error", err)
		return
	}

	html, err := s.cloner.ClonePage(ctx, target, func(stage cloner.Stage) {
		if err := stream.send(streamFrame{Status: string(stage), Message: stageMessages[stage]}); err != nil {
			s.logger.WarnContext(ctx, "Failed to write stream frame", "stage", stage, "error", err)
		}
	})
	if err != nil {
		if clientGone(r, err) {
			s.logger.DebugContext(ctx, "Client disconnected from stream", "url", target)
			return
		}
		status, msg := classify(err)
		s.logger.ErrorContext(ctx, "Stream clone failed", "url", target, "status", status, "error", err)
		if err := stream.send(streamFrame{Status: statusError, Message: msg}); err != nil {
			s.logger.WarnContext(ctx, "Failed to write stream frame", "error", err)
		}
		return
	}

	if err := stream.send(streamFrame{Status: statusComplete, Message: "Clone complete", HTML: html}); err != nil {
		s.logger.WarnContext(ctx, "Failed to write stream frame", "error", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.UnmarshalRead(http.MaxBytesReader(w, r.Body, maxBodyBytes), v); err != nil {
		return errBadRequest("invalid request body: %v", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.MarshalWrite(w, v, json.Deterministic(true)); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if clientGone(r, err) {
		s.logger.DebugContext(r.Context(), "Client disconnected", "path", r.URL.Path)
		return
	}
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.logger.DebugContext(r.Context(), "Rejected request", "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, r, status, errorResponse{
		Success:   false,
		Error:     msg,
		Timestamp: timestamp(),
	})
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
