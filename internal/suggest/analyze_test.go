package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyze_JavaScriptMethodMember(t *testing.T) {
	text := "import { useState } from 'react';\n" +
		"\n" +
		"class Counter {\n" +
		"  increment() {\n" +
		"    this.\n" +
		"  }\n" +
		"}\n"

	ctx := Analyze(text, Position{Line: 4, Column: 9}, "tsx")

	assert.Equal(t, "javascript", ctx.Language)
	assert.Equal(t, ScopeMethod, ctx.Scope)
	assert.Equal(t, 2, ctx.BraceDepth)
	assert.Equal(t, "    ", ctx.Indent)
	assert.Equal(t, 4, ctx.IndentWidth)
	assert.True(t, ctx.Incomplete.Has(IncompleteMember))
	assert.False(t, ctx.Incomplete.Has(IncompleteImport))
	assert.Equal(t, KindProperty, ctx.SuggestionKind())
}

func TestAnalyze_JavaScriptFunctionAssignment(t *testing.T) {
	text := "function add(a, b) {\n  const total = \n}"

	ctx := Analyze(text, Position{Line: 1, Column: 16}, "js")

	assert.Equal(t, ScopeFunction, ctx.Scope)
	assert.True(t, ctx.Incomplete.Has(IncompleteAssignment))
	assert.Equal(t, KindVariable, ctx.SuggestionKind())
}

func TestAnalyze_ClassScope(t *testing.T) {
	text := "class A {\n  \n}"
	ctx := Analyze(text, Position{Line: 1, Column: 2}, "ts")
	assert.Equal(t, ScopeClass, ctx.Scope)

	ctx = Analyze("const x = 1;\n", Position{Line: 1, Column: 0}, "ts")
	assert.Equal(t, ScopeGlobal, ctx.Scope)
}

func TestAnalyze_StringsAndComments(t *testing.T) {
	ctx := Analyze(`const s = "hello`, Position{Line: 0, Column: 16}, "js")
	assert.True(t, ctx.InString)
	assert.Zero(t, ctx.Incomplete)

	ctx = Analyze("const t = `a ${x}", Position{Line: 0, Column: 17}, "js")
	assert.True(t, ctx.InTemplate)
	assert.Zero(t, ctx.BraceDepth)

	ctx = Analyze("/* todo\n", Position{Line: 1, Column: 0}, "js")
	assert.True(t, ctx.InBlockComment)
	assert.True(t, ctx.InComment())
	assert.Zero(t, ctx.Incomplete)

	ctx = Analyze("x = 1 // note {", Position{Line: 0, Column: 15}, "js")
	assert.True(t, ctx.InLineComment)
	assert.Zero(t, ctx.BraceDepth)

	ctx = Analyze(`const s = "a\"b" + {`, Position{Line: 0, Column: 20}, "js")
	assert.False(t, ctx.InString)
	assert.Equal(t, 1, ctx.BraceDepth)
}

func TestAnalyze_Imports(t *testing.T) {
	ctx := Analyze("import { use", Position{Line: 0, Column: 12}, "ts")
	assert.True(t, ctx.Incomplete.Has(IncompleteImport))
	assert.Equal(t, KindImport, ctx.SuggestionKind())

	ctx = Analyze("import React from 'react';", Position{Line: 0, Column: 26}, "ts")
	assert.False(t, ctx.Incomplete.Has(IncompleteImport))

	ctx = Analyze("from os import ", Position{Line: 0, Column: 15}, "py")
	assert.True(t, ctx.Incomplete.Has(IncompleteImport))

	ctx = Analyze(`import "fmt"`, Position{Line: 0, Column: 12}, "go")
	assert.False(t, ctx.Incomplete.Has(IncompleteImport))
}

func TestAnalyze_GoMethodInsideConditional(t *testing.T) {
	text := "package main\n" +
		"\n" +
		"type S struct {\n" +
		"}\n" +
		"\n" +
		"func (s *S) Run() {\n" +
		"\tif x {\n" +
		"\t\t\n" +
		"\t}\n" +
		"}\n"

	ctx := Analyze(text, Position{Line: 7, Column: 2}, "go")

	assert.Equal(t, "go", ctx.Language)
	assert.Equal(t, ScopeMethod, ctx.Scope)
	assert.Equal(t, 8, ctx.IndentWidth)
	assert.True(t, ctx.Incomplete.Has(IncompleteConditional))
	assert.Equal(t, KindCompletion, ctx.SuggestionKind())
}

func TestAnalyze_GoFunction(t *testing.T) {
	text := "func main() {\n\tv := \n}"
	ctx := Analyze(text, Position{Line: 1, Column: 6}, "go")
	assert.Equal(t, ScopeFunction, ctx.Scope)
	assert.True(t, ctx.Incomplete.Has(IncompleteAssignment))
}

func TestAnalyze_Python(t *testing.T) {
	text := "class A:\n    def run(self):\n        x = ["
	ctx := Analyze(text, Position{Line: 2, Column: 13}, "py")

	assert.Equal(t, ScopeMethod, ctx.Scope)
	assert.Equal(t, 1, ctx.BracketDepth)
	assert.True(t, ctx.Incomplete.Has(IncompleteCollection))

	ctx = Analyze("def f():\n    ", Position{Line: 1, Column: 4}, "py")
	assert.Equal(t, ScopeFunction, ctx.Scope)
	assert.True(t, ctx.Incomplete.Has(IncompleteFunction))
	assert.Equal(t, KindFunction, ctx.SuggestionKind())

	ctx = Analyze(`s = """doc`, Position{Line: 0, Column: 10}, "py")
	assert.True(t, ctx.InString)
	assert.False(t, ctx.InTemplate)
}

func TestAnalyze_FreshLineAfterFunctionHeader(t *testing.T) {
	text := "const f = () => {\n  \n}"
	ctx := Analyze(text, Position{Line: 1, Column: 2}, "ts")

	assert.Equal(t, ScopeFunction, ctx.Scope)
	assert.True(t, ctx.Incomplete.Has(IncompleteFunction))
	assert.False(t, ctx.Incomplete.Has(IncompleteAssignment))
}

func TestAnalyze_CursorBeyondText(t *testing.T) {
	ctx := Analyze("ab", Position{Line: 5, Column: 9}, "ts")
	assert.Equal(t, "", ctx.Line)
	assert.Equal(t, ScopeGlobal, ctx.Scope)
}

func TestLanguage(t *testing.T) {
	assert.Equal(t, "javascript", Language(".TSX"))
	assert.Equal(t, "python", Language("py"))
	assert.Equal(t, "generic", Language("rs"))
}
