package suggest

import (
	"regexp"
	"strings"
)

// Scope classifies the lexical block enclosing the cursor.
type Scope int

const (
	ScopeGlobal Scope = iota
	ScopeFunction
	ScopeClass
	ScopeMethod
)

func (s Scope) String() string {
	switch s {
	case ScopeFunction:
		return "function"
	case ScopeClass:
		return "class"
	case ScopeMethod:
		return "method"
	}
	return "global"
}

// Incomplete is a set of flags for constructs left open at the cursor.
type Incomplete uint8

const (
	IncompleteFunction Incomplete = 1 << iota
	IncompleteConditional
	IncompleteCollection
	IncompleteAssignment
	IncompleteMember
	IncompleteImport
)

// Has reports whether every flag in f is set.
func (i Incomplete) Has(f Incomplete) bool {
	return i&f == f
}

// Kind is the suggestion type sent to the service.
type Kind string

const (
	KindCompletion Kind = "completion"
	KindFunction   Kind = "function"
	KindVariable   Kind = "variable"
	KindImport     Kind = "import"
	KindProperty   Kind = "property"
)

// Context is the result of analysing a document around the cursor. It is
// heuristic: patterns are matched textually, nothing is parsed.
type Context struct {
	Language string
	Line     string
	Before   string
	After    string

	Indent      string
	IndentWidth int

	BraceDepth   int
	BracketDepth int
	ParenDepth   int

	InString       bool
	InTemplate     bool
	InLineComment  bool
	InBlockComment bool

	Scope      Scope
	Incomplete Incomplete
}

// InComment reports whether the cursor is inside any comment.
func (c Context) InComment() bool {
	return c.InLineComment || c.InBlockComment
}

// SuggestionKind picks the request kind implied by the context.
func (c Context) SuggestionKind() Kind {
	switch {
	case c.Incomplete.Has(IncompleteImport):
		return KindImport
	case c.Incomplete.Has(IncompleteMember):
		return KindProperty
	case c.Incomplete.Has(IncompleteAssignment):
		return KindVariable
	case c.Incomplete.Has(IncompleteFunction):
		return KindFunction
	}
	return KindCompletion
}

type language struct {
	name        string
	lineComment string
	blockStart  string
	blockEnd    string
	quotes      string
	multiline   []string
	template    bool
	indented    bool

	control  *regexp.Regexp
	class    *regexp.Regexp
	method   *regexp.Regexp
	function *regexp.Regexp

	funcHeader  *regexp.Regexp
	conditional *regexp.Regexp
	importStart *regexp.Regexp
	importDone  *regexp.Regexp
}

var (
	collectionRe = regexp.MustCompile(`(?:[=:(,\[]|\breturn)\s*[\[{]$`)
	assignmentRe = regexp.MustCompile(`(?:^|[^=!<>])=$|:=$`)
	memberRe     = regexp.MustCompile(`[\w$)\]]\.$`)
)

var javascript = &language{
	name:        "javascript",
	lineComment: "//",
	blockStart:  "/*",
	blockEnd:    "*/",
	quotes:      `"'`,
	multiline:   []string{"`"},
	template:    true,

	control:  regexp.MustCompile(`^\s*(?:\}\s*)?(?:if|else|for|while|switch|catch|try|do|finally)\b`),
	class:    regexp.MustCompile(`\b(?:class|interface)\s+[A-Za-z_$][\w$]*`),
	method:   regexp.MustCompile(`^\s*(?:(?:public|private|protected|static|async|get|set|readonly)\s+)*[A-Za-z_$][\w$]*\s*\([^)]*\)\s*(?::\s*[^=]+)?$`),
	function: regexp.MustCompile(`\bfunction\b|=>\s*$`),

	funcHeader:  regexp.MustCompile(`(?:\bfunction\b[^{}]*|=>\s*)\{?$`),
	conditional: regexp.MustCompile(`^\s*(?:\}\s*)?(?:(?:else\s+)?if|while|for|switch)\b[^{};]*\{?$|^\s*(?:\}\s*)?else\s*\{?$`),
	importStart: regexp.MustCompile(`^\s*import\b`),
	importDone:  regexp.MustCompile(`(?:\bfrom\s*|^\s*import\s*)['"][^'"]+['"];?$`),
}

var golang = &language{
	name:        "go",
	lineComment: "//",
	blockStart:  "/*",
	blockEnd:    "*/",
	quotes:      `"'`,
	multiline:   []string{"`"},

	control:  regexp.MustCompile(`^\s*(?:\}\s*)?(?:if|else|for|switch|select|case|default)\b`),
	class:    regexp.MustCompile(`^\s*type\s+\w+\s+(?:struct|interface)\b`),
	method:   regexp.MustCompile(`^\s*func\s*\([^)]*\)\s*\w+`),
	function: regexp.MustCompile(`\bfunc\b`),

	funcHeader:  regexp.MustCompile(`^\s*func\b[^{}]*\{?$`),
	conditional: regexp.MustCompile(`^\s*(?:\}\s*)?(?:(?:else\s+)?if|for|switch|select)\b[^{}]*\{?$|^\s*\}\s*else\s*\{?$`),
	importStart: regexp.MustCompile(`^\s*import\b`),
	importDone:  regexp.MustCompile(`^\s*import\s+(?:[\w.]+\s+)?"[^"]+"$`),
}

var python = &language{
	name:        "python",
	lineComment: "#",
	quotes:      `"'`,
	multiline:   []string{`"""`, `'''`},
	indented:    true,

	class:    regexp.MustCompile(`^\s*class\s+\w+`),
	function: regexp.MustCompile(`^\s*(?:async\s+)?def\s+\w+`),

	funcHeader:  regexp.MustCompile(`^\s*(?:async\s+)?def\s+\w*(?:\(.*)?:?$`),
	conditional: regexp.MustCompile(`^\s*(?:if|elif|else|while|for|with|try|except|finally)\b[^#]*:?$`),
	importStart: regexp.MustCompile(`^\s*(?:from|import)\b`),
	importDone: regexp.MustCompile(`^\s*(?:import\s+[\w.]+(?:\s+as\s+\w+)?(?:\s*,\s*[\w.]+(?:\s+as\s+\w+)?)*` +
		`|from\s+[\w.]+\s+import\s+(?:\*|\w+(?:\s+as\s+\w+)?(?:\s*,\s*\w+(?:\s+as\s+\w+)?)*))$`),
}

var generic = &language{
	name:        "generic",
	lineComment: "//",
	blockStart:  "/*",
	blockEnd:    "*/",
	quotes:      `"'`,

	control:  regexp.MustCompile(`^\s*(?:\}\s*)?(?:if|else|elif|for|while|switch|catch|try|do|finally)\b`),
	class:    regexp.MustCompile(`\b(?:class|struct|interface|impl|trait)\s+\w+`),
	function: regexp.MustCompile(`\b(?:function|func|fn|def)\b|^\s*[\w<>\[\]*&:]+\s+\**\w+\s*\([^;]*\)\s*(?:const\s*)?$`),

	funcHeader:  regexp.MustCompile(`\b(?:function|func|fn|def)\b[^{};]*\{?$`),
	conditional: regexp.MustCompile(`^\s*(?:\}\s*)?(?:(?:else\s+)?if|while|for|switch)\b[^{};]*\{?$`),
	importStart: regexp.MustCompile(`^\s*(?:import|use|#include|require)\b`),
	importDone:  regexp.MustCompile(`['">;]$`),
}

var languages = map[string]*language{
	"js":  javascript,
	"jsx": javascript,
	"mjs": javascript,
	"cjs": javascript,
	"ts":  javascript,
	"tsx": javascript,
	"go":  golang,
	"py":  python,
}

func languageFor(ext string) *language {
	if l, ok := languages[strings.ToLower(strings.TrimPrefix(ext, "."))]; ok {
		return l
	}
	return generic
}

// Language returns the analyser language name for a file extension.
func Language(ext string) string {
	return languageFor(ext).name
}

// Analyze inspects text around pos using patterns chosen by ext.
func Analyze(text string, pos Position, ext string) Context {
	lang := languageFor(ext)
	line := lineAt(text, pos.Line)
	before, after := splitAt(line, pos.Column)

	ctx := Context{
		Language: lang.name,
		Line:     line,
		Before:   before,
		After:    after,
	}
	ctx.Indent = leadingSpace(line)
	ctx.IndentWidth = indentWidth(ctx.Indent)

	src := text[:offset(text, pos)]
	st := scan(src, lang)
	ctx.BraceDepth = st.brace
	ctx.BracketDepth = st.bracket
	ctx.ParenDepth = st.paren
	switch st.mode {
	case modeLineComment:
		ctx.InLineComment = true
	case modeBlockComment:
		ctx.InBlockComment = true
	case modeString:
		ctx.InString = true
	case modeMultiline:
		if lang.template {
			ctx.InTemplate = true
		} else {
			ctx.InString = true
		}
	}

	if lang.indented {
		ctx.Scope = indentScope(text, pos.Line, before, lang)
	} else {
		ctx.Scope = braceScope(src, st.openers, lang)
	}

	if !ctx.InComment() {
		ctx.Incomplete = incomplete(text, pos.Line, before, lang, ctx)
	}
	return ctx
}

const (
	modeCode = iota
	modeLineComment
	modeBlockComment
	modeString
	modeMultiline
)

type scanState struct {
	mode    int
	quote   byte
	delim   string
	openers []int
	brace   int
	bracket int
	paren   int
}

// scan runs a small lexer over src, tracking comment and string state and
// the offsets of unmatched '{'.
func scan(src string, lang *language) scanState {
	var st scanState
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch st.mode {
		case modeLineComment:
			if c == '\n' {
				st.mode = modeCode
			}
		case modeBlockComment:
			if strings.HasPrefix(src[i:], lang.blockEnd) {
				st.mode = modeCode
				i += len(lang.blockEnd) - 1
			}
		case modeString:
			if c == '\\' {
				i++
				continue
			}
			if c == st.quote || c == '\n' {
				st.mode = modeCode
			}
		case modeMultiline:
			if c == '\\' && lang.template {
				i++
				continue
			}
			if strings.HasPrefix(src[i:], st.delim) {
				st.mode = modeCode
				i += len(st.delim) - 1
			}
		default:
			if lang.lineComment != "" && strings.HasPrefix(src[i:], lang.lineComment) {
				st.mode = modeLineComment
				i += len(lang.lineComment) - 1
				continue
			}
			if lang.blockStart != "" && strings.HasPrefix(src[i:], lang.blockStart) {
				st.mode = modeBlockComment
				i += len(lang.blockStart) - 1
				continue
			}
			if d := multilineAt(src[i:], lang); d != "" {
				st.mode = modeMultiline
				st.delim = d
				i += len(d) - 1
				continue
			}
			if strings.IndexByte(lang.quotes, c) >= 0 {
				st.mode = modeString
				st.quote = c
				continue
			}
			switch c {
			case '{':
				st.brace++
				st.openers = append(st.openers, i)
			case '}':
				if st.brace > 0 {
					st.brace--
					st.openers = st.openers[:len(st.openers)-1]
				}
			case '[':
				st.bracket++
			case ']':
				if st.bracket > 0 {
					st.bracket--
				}
			case '(':
				st.paren++
			case ')':
				if st.paren > 0 {
					st.paren--
				}
			}
		}
	}
	return st
}

func multilineAt(s string, lang *language) string {
	for _, d := range lang.multiline {
		if strings.HasPrefix(s, d) {
			return d
		}
	}
	return ""
}

// braceScope walks the unmatched openers from innermost outwards and
// classifies the first one whose header names a scope.
func braceScope(src string, openers []int, lang *language) Scope {
	for k := len(openers) - 1; k >= 0; k-- {
		h := header(src, openers[k])
		switch {
		case lang.control != nil && lang.control.MatchString(h):
			continue
		case lang.class.MatchString(h):
			return ScopeClass
		case lang.method != nil && lang.method.MatchString(h):
			return ScopeMethod
		case lang.function.MatchString(h):
			if k > 0 && lang.class.MatchString(header(src, openers[k-1])) {
				return ScopeMethod
			}
			return ScopeFunction
		}
	}
	return ScopeGlobal
}

// header is the text preceding the brace at off on its line, or the
// previous line when the brace stands alone.
func header(src string, off int) string {
	start := strings.LastIndexByte(src[:off], '\n') + 1
	h := src[start:off]
	if strings.TrimSpace(h) == "" && start > 0 {
		prev := strings.LastIndexByte(src[:start-1], '\n') + 1
		h = src[prev : start-1]
	}
	return h
}

// indentScope finds enclosing blocks of an indentation-scoped language by
// walking upward for lines indented less than the cursor.
func indentScope(text string, line int, before string, lang *language) Scope {
	lines := strings.Split(text, "\n")
	if line > len(lines) {
		line = len(lines)
	}
	target := indentWidth(leadingSpace(before))
	if strings.TrimSpace(before) != "" && line < len(lines) {
		target = indentWidth(leadingSpace(lines[line]))
	}

	var found []Scope
	for i := line - 1; i >= 0 && target > 0; i-- {
		l := lines[i]
		trimmed := strings.TrimSpace(l)
		if trimmed == "" || strings.HasPrefix(trimmed, lang.lineComment) {
			continue
		}
		w := indentWidth(leadingSpace(l))
		if w >= target {
			continue
		}
		target = w
		switch {
		case lang.class.MatchString(l):
			found = append(found, ScopeClass)
		case lang.function.MatchString(l):
			found = append(found, ScopeFunction)
		}
	}

	if len(found) == 0 {
		return ScopeGlobal
	}
	if found[0] == ScopeFunction && len(found) > 1 && found[1] == ScopeClass {
		return ScopeMethod
	}
	return found[0]
}

func incomplete(text string, line int, before string, lang *language, ctx Context) Incomplete {
	var flags Incomplete

	subject := strings.TrimRight(before, " \t")
	fresh := strings.TrimSpace(subject) == ""
	if fresh {
		subject = previousLine(text, line)
	}

	if lang.importStart.MatchString(subject) && !lang.importDone.MatchString(subject) {
		flags |= IncompleteImport
	}
	if ctx.InString || ctx.InTemplate {
		return flags
	}

	if lang.funcHeader.MatchString(subject) {
		flags |= IncompleteFunction
	}
	if lang.conditional.MatchString(subject) {
		flags |= IncompleteConditional
	}
	if collectionRe.MatchString(subject) || ctx.BracketDepth > 0 {
		flags |= IncompleteCollection
	}
	if !fresh {
		if assignmentRe.MatchString(subject) {
			flags |= IncompleteAssignment
		}
		if memberRe.MatchString(before) {
			flags |= IncompleteMember
		}
	}
	return flags
}

// previousLine returns the nearest non-blank line above line, right-trimmed.
func previousLine(text string, line int) string {
	for i := line - 1; i >= 0; i-- {
		if l := strings.TrimRight(lineAt(text, i), " \t\r"); strings.TrimSpace(l) != "" {
			return l
		}
	}
	return ""
}

func leadingSpace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

func indentWidth(ws string) int {
	w := 0
	for _, r := range ws {
		if r == '\t' {
			w += 4
		} else {
			w++
		}
	}
	return w
}
