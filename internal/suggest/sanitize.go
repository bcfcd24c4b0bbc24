package suggest

import (
	"regexp"
	"strings"
)

// CursorMarker is the token the prompt uses to mark the cursor.
const CursorMarker = "|CURSOR|"

var (
	fenceRe      = regexp.MustCompile("(?s)```[\\w+#.-]*[ \\t]*\\n?(.*?)```")
	fenceLineRe  = regexp.MustCompile("(?m)^[ \\t]*```[\\w+#.-]*[ \\t]*$\\n?")
	lineNumberRe = regexp.MustCompile(`(?m)^\d+:[ \t]?`)
)

// Sanitize extracts the insertable completion from a raw service response.
// It unwraps the first fenced block, drops cursor markers and echoed line
// numbers, and trims surrounding whitespace.
func Sanitize(raw string) (string, error) {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	} else {
		s = fenceLineRe.ReplaceAllString(s, "")
	}
	s = strings.ReplaceAll(s, CursorMarker, "")
	s = lineNumberRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidFormat
	}
	return s, nil
}
