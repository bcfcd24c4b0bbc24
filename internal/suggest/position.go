package suggest

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Position is a 0-based cursor location. Column counts runes.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Before reports whether p comes strictly before o.
func (p Position) Before(o Position) bool {
	return p.Line < o.Line || (p.Line == o.Line && p.Column < o.Column)
}

// Edit is a single insertion produced by accepting a suggestion.
type Edit struct {
	At          Position `json:"at"`
	Text        string   `json:"text"`
	CursorAfter Position `json:"cursorAfter"`
}

// Change describes one content mutation reported by the editor. Removed is
// the number of runes deleted at At before Inserted was inserted.
type Change struct {
	At       Position `json:"at"`
	Removed  int      `json:"removed"`
	Inserted string   `json:"inserted"`
	Text     string   `json:"text"`
	Cursor   Position `json:"cursor"`
}

// lineAt returns line n of text, or "" when out of range.
func lineAt(text string, n int) string {
	if n < 0 {
		return ""
	}
	for i := 0; i < n; i++ {
		j := strings.IndexByte(text, '\n')
		if j < 0 {
			return ""
		}
		text = text[j+1:]
	}
	if j := strings.IndexByte(text, '\n'); j >= 0 {
		return text[:j]
	}
	return text
}

// splitAt splits line at a rune column, clamping to the line length.
func splitAt(line string, col int) (before, after string) {
	if col <= 0 {
		return "", line
	}
	i := 0
	for n := 0; n < col && i < len(line); n++ {
		_, size := utf8.DecodeRuneInString(line[i:])
		i += size
	}
	return line[:i], line[i:]
}

// offset converts a position to a byte offset, clamping columns to the end
// of the line and lines to the end of the text.
func offset(text string, pos Position) int {
	off := 0
	for i := 0; i < pos.Line; i++ {
		j := strings.IndexByte(text[off:], '\n')
		if j < 0 {
			return len(text)
		}
		off += j + 1
	}
	before, _ := splitAt(lineAt(text[off:], 0), pos.Column)
	return off + len(before)
}

// endOf returns the position just after text inserted at start.
func endOf(start Position, text string) Position {
	nl := strings.Count(text, "\n")
	if nl == 0 {
		return Position{Line: start.Line, Column: start.Column + utf8.RuneCountInString(text)}
	}
	last := text[strings.LastIndexByte(text, '\n')+1:]
	return Position{Line: start.Line + nl, Column: utf8.RuneCountInString(last)}
}

// ApplyEdit returns text with edit applied.
func ApplyEdit(text string, edit Edit) string {
	off := offset(text, edit.At)
	return text[:off] + edit.Text + text[off:]
}
