package suggest

import (
	"strings"
)

// DefaultTriggerChars are the keystrokes that always make a cursor
// transition significant.
const DefaultTriggerChars = "\n{.=(,:;"

// closers may follow the cursor without making it mid-token, since editors
// auto-insert them.
const closers = ")]}'\"`;,"

// TriggerPolicy decides whether a cursor transition should issue a request.
type TriggerPolicy struct {
	// Tolerance is how far, in columns on the anchor line, the cursor may
	// move before a displayed suggestion is invalidated.
	Tolerance int
	// ColumnDelta is the same-line movement that counts as significant.
	ColumnDelta int
	// Chars are the trigger characters.
	Chars string
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() TriggerPolicy {
	return TriggerPolicy{Tolerance: 2, ColumnDelta: 2, Chars: DefaultTriggerChars}
}

// ShouldTrigger evaluates the policy for a move from prev to cur in text.
// typed is the character just inserted, or 0 for a pure cursor move.
func (p TriggerPolicy) ShouldTrigger(text string, prev, cur Position, typed rune, pending bool) bool {
	if pending {
		return false
	}
	if p.midToken(text, cur) {
		return false
	}
	if typed != 0 && strings.ContainsRune(p.Chars, typed) {
		return true
	}
	if cur.Line != prev.Line {
		return true
	}
	d := cur.Column - prev.Column
	if d < 0 {
		d = -d
	}
	return d > p.ColumnDelta
}

// midToken reports whether the cursor has code to its right on the same
// line. A fresh empty line never counts.
func (p TriggerPolicy) midToken(text string, cur Position) bool {
	line := lineAt(text, cur.Line)
	if strings.TrimSpace(line) == "" {
		return false
	}
	_, after := splitAt(line, cur.Column)
	return strings.TrimLeft(strings.TrimSpace(after), closers) != ""
}

// within reports whether cur is inside the tolerance window of anchor.
func (p TriggerPolicy) within(anchor, cur Position) bool {
	if anchor.Line != cur.Line {
		return false
	}
	d := cur.Column - anchor.Column
	if d < 0 {
		d = -d
	}
	return d <= p.Tolerance
}
