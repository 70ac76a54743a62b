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
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/peonyhq/peony/capture"
	"github.com/peonyhq/peony/cloner"
	"github.com/peonyhq/peony/generator"
)

// badRequest is a validation failure whose message is safe to show to clients.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func errBadRequest(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

const (
	msgCaptureFailed  = "failed to capture page"
	msgGenerateFailed = "failed to generate clone"
	msgNoPages        = "no pages were successfully cloned"
	msgTimeout        = "request timed out"
	msgInternal       = "internal server error"
)

// classify maps err to the HTTP status and client message. Internal error
// detail never reaches the client.
func classify(err error) (int, string) {
	var (
		bad    *badRequest
		capErr *capture.Error
		genErr *generator.Error
	)
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, bad.msg
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, msgTimeout
	case errors.Is(err, cloner.ErrNoPagesCloned):
		return http.StatusInternalServerError, msgNoPages
	case errors.As(err, &genErr), errors.Is(err, generator.ErrEmptyDocument):
		return http.StatusInternalServerError, msgGenerateFailed
	case errors.As(err, &capErr):
		return http.StatusInternalServerError, msgCaptureFailed
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// normalizeURL validates a client supplied target URL.
// clientGone reports whether err comes from the client of r going away.
func clientGone(r *http.Request, err error) bool {
	return errors.Is(err, context.Canceled) && r.Context().Err() != nil
}

func normalizeURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errBadRequest("url is required")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", errBadRequest("invalid url: %v", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", errBadRequest("url scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return "", errBadRequest("url must include a host")
	}

	return parsedURL.String(), nil
}
