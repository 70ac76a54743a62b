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
	"fmt"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/peonyhq/peony/snapshot"
)

const (
	singlePassSystemPrompt = `You are an expert web developer. Generate a complete HTML and CSS implementation that clones the original website's layout, colors, fonts, text sizes, proportions, images, svg icons, and styles. Focus on all of these along with visual accuracy and responsive design. Don't leave any components out.`

	initialSystemPrompt = `Generate the beginning of a complete HTML document. Start with DOCTYPE, head section, and begin the body. If truncated, I will ask you to continue.`

	continuationSystemPrompt = `Continue the HTML exactly where it left off. Complete cloning any unfinished elements and continue with the remaining structure.`

	contextPromptFmt = `Clone this website:

HTML Structure:
%s

Styles:
%s

Images:
%s

Additional Styles:
%s

Please generate a complete HTML and CSS implementation that closely matches the original design. Focus on:
- Maintaining the visual hierarchy
- Preserving the styling and layout (colors, fonts, text sizes, proportions, images, svg icons, and styles)
- Ensuring responsive design
- Optimizing for performance
- Following web development best practices

`

	singlePassInstruction = `Return the complete HTML and CSS code that can be used to recreate the website with all of its components. I should be able to copy and paste the code into an iframe and see the website. You should only return the code, no other text.`

	initialInstruction = `Begin the HTML and CSS code that can be used to recreate the website with all of its components. I should be able to copy and paste the code into an iframe and see the website. You should only return the code, no other text. If you get cut off, I'll ask you to continue:`

	continuationPromptFmt = `Continue the HTML exactly where it left off:

CURRENT HTML (ending):
...%s

Continue from exactly where it ended. Complete cloning any unfinished elements, ensuring the layout, color, text styles, images, svg icons and styles match the website. Continue cloning with the remaining HTML structure until the document is complete with </html>.

Continue the code:`
)

// SinglePassPrompt asks for the whole document in one response.
func SinglePassPrompt(dc *snapshot.DesignContext) (string, error) {
	return contextPrompt(dc, singlePassInstruction)
}

// InitialPrompt asks for the start of the document, allowing truncation.
func InitialPrompt(dc *snapshot.DesignContext) (string, error) {
	return contextPrompt(dc, initialInstruction)
}

// ContinuationPrompt asks the model to resume from the trailing window of doc.
func ContinuationPrompt(doc string, window int) string {
	return fmt.Sprintf(continuationPromptFmt, tail(doc, window))
}

func contextPrompt(dc *snapshot.DesignContext, instruction string) (string, error) {
	styles, err := indentJSON(dc.ComputedStyles)
	if err != nil {
		return "", fmt.Errorf("encode computed styles: %w", err)
	}
	images, err := indentJSON(dc.Images)
	if err != nil {
		return "", fmt.Errorf("encode images: %w", err)
	}
	inline, err := indentJSON(dc.InlineStyles)
	if err != nil {
		return "", fmt.Errorf("encode inline styles: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, contextPromptFmt, dc.Markup, styles, images, inline)
	sb.WriteString(instruction)
	return sb.String(), nil
}

func indentJSON(v any) (string, error) {
	b, err := json.Marshal(v,
		json.Deterministic(true),
		jsontext.WithIndent("  "),
	)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
