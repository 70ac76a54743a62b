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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const completeDoc = `<!DOCTYPE html>
<html lang="en">
<head><title>Example</title></head>
<body>
<h1>Hello</h1>
</body>
</html>`

func TestIsComplete(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want bool
	}{
		{name: "complete", doc: completeDoc, want: true},
		{name: "case insensitive", doc: strings.ToUpper(completeDoc), want: true},
		{name: "missing doctype", doc: strings.Replace(completeDoc, "<!DOCTYPE html>", "", 1), want: false},
		{name: "missing closing html", doc: strings.Replace(completeDoc, "</html>", "", 1), want: false},
		{name: "missing closing body", doc: strings.Replace(completeDoc, "</body>", "", 1), want: false},
		{name: "missing head", doc: strings.Replace(completeDoc, "<head><title>Example</title></head>", "", 1), want: false},
		{name: "empty", doc: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsComplete(tt.doc))
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "fenced with prose",
			raw:  "Here is the clone:\n```html\n" + completeDoc + "\n```\nLet me know if you need changes.",
			want: completeDoc,
		},
		{
			name: "fence without language",
			raw:  "```\n" + completeDoc + "\n```",
			want: completeDoc,
		},
		{
			name: "lowercase doctype",
			raw:  "Sure!\n<!doctype html>\n<html></html>\nDone.",
			want: "<!doctype html>\n<html></html>",
		},
		{
			name: "starts at html tag",
			raw:  "preamble\n  <html>\n<body></body>\n</HTML>\ntrailer",
			want: "<html>\n<body></body>\n</HTML>",
		},
		{
			name: "no markers keeps text",
			raw:  "  <div>fragment</div>\n",
			want: "<div>fragment</div>",
		},
		{
			name: "truncated keeps tail",
			raw:  "```html\n<!DOCTYPE html>\n<html>\n<body>\n<p>cut",
			want: "<!DOCTYPE html>\n<html>\n<body>\n<p>cut",
		},
		{
			name: "end before start",
			raw:  "</html>\n<!DOCTYPE html>",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.raw))
		})
	}
}

func TestSanitizeCompleteDocumentIsComplete(t *testing.T) {
	raw := "I recreated the page below.\n\n```html\n" + completeDoc + "\n```\n\nThe layout uses flexbox."

	got := Sanitize(raw)
	assert.True(t, IsComplete(got))
	assert.True(t, strings.HasPrefix(got, "<!DOCTYPE html>"))
	assert.True(t, strings.HasSuffix(got, "</html>"))
	assert.NotContains(t, got, "```")
}

func TestSanitizeIdempotent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "complete", raw: completeDoc},
		{name: "fenced", raw: "```html\n" + completeDoc + "\n```"},
		{name: "fenced language tag uppercase", raw: "```HTML\n" + completeDoc + "\n```\n"},
		{name: "prose wrapped", raw: "Here is the recreated page:\n\n" + completeDoc + "\n\nIt uses a flex layout."},
		{name: "uppercase markers", raw: "Sure.\n" + strings.ToUpper(completeDoc) + "\nDONE"},
		{name: "inline code in body", raw: "```html\n" + strings.Replace(completeDoc, "<h1>Hello</h1>", "<p>Run <code>`go test`</code></p>", 1) + "\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := Sanitize(tt.raw)
			assert.True(t, IsComplete(once))
			assert.Equal(t, once, Sanitize(once))
		})
	}
}

func TestMerge(t *testing.T) {
	doc := "<!DOCTYPE html>\n<html>\n<head><style>body { margin: 0; }</style></head>\n<body>\n<div class=\"hero\">\n<p>Truncated para"
	fragment := "<!DOCTYPE html>\n<html lang=\"en\">\n<head><title>dup</title></head>\n<body class=\"main\">\n<header>Nav</header>\n<p>Rest</p>\n</div>\n</body>\n</html>"

	got := Merge(doc, fragment)

	assert.Equal(t, 1, strings.Count(got, "<!DOCTYPE html>"))
	assert.Equal(t, 1, strings.Count(got, "<html"))
	assert.Equal(t, 1, strings.Count(got, "<head>"))
	assert.Equal(t, 1, strings.Count(got, "<body"))
	assert.NotContains(t, got, "Truncated para")
	assert.NotContains(t, got, "<title>dup</title>")
	assert.Contains(t, got, "<header>Nav</header>")
	assert.True(t, strings.HasPrefix(got, "<!DOCTYPE html>\n<html>\n<head><style>body { margin: 0; }</style></head>\n<body>\n<div class=\"hero\">\n"))
	assert.True(t, IsComplete(got))
}

func TestMergeMidAttribute(t *testing.T) {
	doc := "<!DOCTYPE html>\n<html>\n<head></head>\n<body>\n<section>\n<div class=\"he"
	fragment := "<div class=\"hero\">Hi</div>\n</section>\n</body>\n</html>"

	got := Merge(doc, fragment)
	assert.Equal(t, "<!DOCTYPE html>\n<html>\n<head></head>\n<body>\n<section>\n<div class=\"hero\">Hi</div>\n</section>\n</body>\n</html>", got)
	assert.NotContains(t, got, "class=\"he\n")
	assert.True(t, IsComplete(got))
}

func TestTrimIncompleteEnding(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "tag", doc: "<div>\n<p>cut", want: "<div>"},
		{name: "css rule", doc: ".a { color: red; }\n.b { col", want: ".a { color: red; }"},
		{name: "declaration", doc: "  color: red;\n  back", want: "  color: red;"},
		{name: "trailing whitespace", doc: "<div>  \n", want: "<div>  "},
		{name: "already clean", doc: "<div>\n</div>", want: "<div>\n</div>"},
		{name: "no qualifying line", doc: "abc\ndef", want: "abc\ndef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrimIncompleteEnding(tt.doc))
		})
	}
}

func TestRepair(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "empty", doc: "", want: ""},
		{name: "whitespace", doc: " \n\t", want: " \n\t"},
		{name: "complete", doc: completeDoc, want: completeDoc},
		{
			name: "fragment",
			doc:  "<div>hi</div>",
			want: "<!DOCTYPE html>\n<div>hi</div>\n</body>\n</html>",
		},
		{
			name: "missing closing tags",
			doc:  "<!doctype html>\n<html><head></head><body><p>x</p>",
			want: "<!doctype html>\n<html><head></head><body><p>x</p>\n</body>\n</html>",
		},
		{
			name: "missing html close only",
			doc:  "<!DOCTYPE html><html><body></body>",
			want: "<!DOCTYPE html><html><body></body>\n</html>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Repair(tt.doc))
		})
	}
}

func TestRepairIsAdditive(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"<p>unterminated",
		completeDoc,
		"<html><body>\n</BODY>",
		"<!DOCTYPE html>\n<style>.a{}</style>",
	}
	for _, in := range inputs {
		out := Repair(in)
		assert.Contains(t, out, in)
		assert.GreaterOrEqual(t, len(out), len(in))
	}
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail("abc", 10))
	assert.Equal(t, "bc", tail("abc", 2))
	assert.Equal(t, "é€", tail("aé€", 2))
}
