package completion

import (
	"fmt"
	"strings"

	"codepad/internal/suggest"
)

// ContextRadius is how many lines around the cursor go into the prompt.
const ContextRadius = 5

// contextWindow returns the numbered lines around the cursor with the
// cursor marker spliced in, and the 1-based first and last line numbers.
func contextWindow(content string, line, column int) (string, int, int) {
	lines := strings.Split(content, "\n")
	start := max(0, line-ContextRadius)
	end := min(len(lines), line+ContextRadius)
	if start > end {
		start = end
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		if i > start {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d: ", i+1)
		if i == line {
			before, after := splitColumn(lines[i], column)
			b.WriteString(before)
			b.WriteString(suggest.CursorMarker)
			b.WriteString(after)
			continue
		}
		b.WriteString(lines[i])
	}
	return b.String(), start + 1, end
}

func splitColumn(line string, column int) (string, string) {
	r := []rune(line)
	if column > len(r) {
		column = len(r)
	}
	return string(r[:column]), string(r[column:])
}

// DetectLanguage names the language for the prompt. The file extension wins
// when known; otherwise the content is sniffed.
func DetectLanguage(content, fileName string) string {
	if i := strings.LastIndex(fileName, "."); i > 0 {
		switch strings.ToLower(fileName[i+1:]) {
		case "tsx", "jsx":
			return "React/TypeScript"
		case "ts":
			return "TypeScript"
		case "js", "mjs", "cjs":
			return "JavaScript"
		case "go":
			return "Go"
		case "py":
			return "Python"
		}
	}
	switch {
	case strings.Contains(content, "import React"), strings.Contains(content, "jsx"), strings.Contains(content, "tsx"):
		return "React/TypeScript"
	case strings.Contains(content, "function") && strings.Contains(content, "=>"):
		return "JavaScript/TypeScript"
	}
	return "Unknown"
}

// contextLines is the metadata count of lines considered.
func contextLines(content string) int {
	return min(2*ContextRadius, strings.Count(content, "\n")+1)
}

// BuildPrompt renders the model prompt for req.
func BuildPrompt(req SuggestionRequest) string {
	window, first, last := contextWindow(req.FileContent, req.CursorLine, req.CursorColumn)
	lang := DetectLanguage(req.FileContent, req.FileName)

	var b strings.Builder
	b.WriteString("You complete code inside an editor. Reply with only the code to insert at the cursor.\n\n")
	fmt.Fprintf(&b, "<task>\nSuggest a %s at the position marked %s.\n</task>\n\n", req.SuggestionType, suggest.CursorMarker)
	b.WriteString("<context>\n")
	fmt.Fprintf(&b, "Language: %s\n", lang)
	if req.FileName != "" {
		fmt.Fprintf(&b, "File: %s\n", req.FileName)
	}
	fmt.Fprintf(&b, "Lines %d-%d:\n```\n%s\n```\n\n", first, last, window)
	fmt.Fprintf(&b, "Cursor: line %d, column %d\n", req.CursorLine+1, req.CursorColumn+1)
	fmt.Fprintf(&b, "Suggestion type: %s\n", req.SuggestionType)
	b.WriteString("</context>\n\n")
	b.WriteString("<instructions>\n")
	b.WriteString("1. Read the surrounding code and match its style and indentation.\n")
	b.WriteString("2. Do not repeat code that is already before the cursor.\n")
	b.WriteString("3. Do not include line numbers, the cursor marker, or explanations.\n")
	b.WriteString("</instructions>")
	return b.String()
}
