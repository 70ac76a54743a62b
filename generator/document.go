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
	"regexp"
	"strings"
)

// The functions in this file are substring and line heuristics, not an HTML parser.

var (
	fenceRe = regexp.MustCompile("```[A-Za-z0-9_+-]*[ \t]*\r?\n?")

	doctypeRe  = regexp.MustCompile(`(?i)<!doctype[^>]*>`)
	htmlOpenRe = regexp.MustCompile(`(?i)<html\b[^>]*>`)
	headRe     = regexp.MustCompile(`(?is)<head\b[^>]*>.*?</head>`)
	bodyOpenRe = regexp.MustCompile(`(?i)<body\b[^>]*>`)
)

// completeMarkers must all appear, case-insensitively, in a complete document.
var completeMarkers = []string{
	"<!doctype",
	"<html",
	"<head",
	"</head>",
	"<body",
	"</body>",
	"</html>",
}

const doctype = "<!DOCTYPE html>"

// IsComplete reports whether doc contains every structural marker of an HTML document.
func IsComplete(doc string) bool {
	lower := strings.ToLower(doc)
	for _, m := range completeMarkers {
		if !strings.Contains(lower, m) {
			return false
		}
	}
	return true
}

// Sanitize extracts the HTML document from a raw model response.
//
// Code fences are removed, lines before the first one starting with a doctype
// or html tag are dropped, and lines after the last one containing </html> are
// dropped. A missing start or end marker leaves that side untouched.
func Sanitize(raw string) string {
	s := fenceRe.ReplaceAllString(raw, "")
	lines := strings.Split(s, "\n")

	start := 0
	for i, line := range lines {
		l := strings.ToLower(strings.TrimSpace(line))
		if strings.HasPrefix(l, "<!doctype") || strings.HasPrefix(l, "<html") {
			start = i
			break
		}
	}

	end := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.Contains(strings.ToLower(lines[i]), "</html>") {
			end = i + 1
			break
		}
	}

	if end <= start {
		return ""
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}

// Merge appends a continuation fragment to the accumulated document.
//
// Document preamble repeated by the model (doctype, html and body open tags,
// the head block) is stripped from fragment, and doc is cut back to its last
// line that does not end mid-tag or mid-rule.
func Merge(doc, fragment string) string {
	fragment = doctypeRe.ReplaceAllString(fragment, "")
	fragment = htmlOpenRe.ReplaceAllString(fragment, "")
	fragment = headRe.ReplaceAllString(fragment, "")
	fragment = bodyOpenRe.ReplaceAllString(fragment, "")

	return TrimIncompleteEnding(doc) + "\n" + fragment
}

// TrimIncompleteEnding drops trailing lines after the last line ending in '>', '}' or ';'.
// doc is returned unchanged when no line qualifies.
func TrimIncompleteEnding(doc string) string {
	lines := strings.Split(doc, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		l := strings.TrimSpace(lines[i])
		if strings.HasSuffix(l, ">") || strings.HasSuffix(l, "}") || strings.HasSuffix(l, ";") {
			return strings.Join(lines[:i+1], "\n")
		}
	}
	return doc
}

// Repair adds the doctype and closing body and html tags when they are missing.
// It never removes content, and whitespace-only documents are returned unchanged.
func Repair(doc string) string {
	if strings.TrimSpace(doc) == "" {
		return doc
	}

	if !strings.Contains(strings.ToUpper(doc), "<!DOCTYPE") {
		doc = doctype + "\n" + doc
	}
	if !strings.Contains(strings.ToLower(doc), "</body>") {
		doc += "\n</body>"
	}
	if !strings.Contains(strings.ToLower(doc), "</html>") {
		doc += "\n</html>"
	}
	return doc
}

// tail returns the last n characters of s.
func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
