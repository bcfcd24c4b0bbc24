package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codepad/internal/suggest"
)

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	text    string
	err     error
	delay   time.Duration
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.text, g.err
}

func (g *fakeGenerator) Model() string { return "fake" }

func newRouter(gen Generator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(gen).Register(r)
	return r
}

func post(t *testing.T, r http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, Route, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_Suggest(t *testing.T) {
	gen := &fakeGenerator{text: "return a + b;"}
	r := newRouter(gen)

	w := post(t, r, `{"fileContent":"function add(a, b) {\n  \n}","cursorLine":1,"cursorColumn":2,"suggestionType":"function","fileName":"math.ts"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SuggestionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "return a + b;", resp.Suggestion)
	require.NotNil(t, resp.Metadata)
	assert.Equal(t, CursorPosition{Line: 1, Column: 2}, resp.Metadata.CursorPosition)
	assert.Equal(t, "function", resp.Metadata.SuggestionType)
	assert.Equal(t, 3, resp.Metadata.ContextLines)
	assert.Equal(t, "TypeScript", resp.Metadata.Language)
	assert.Equal(t, "fake", resp.Metadata.Model)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "2:   "+suggest.CursorMarker)
	assert.Contains(t, gen.prompts[0], "File: math.ts")
}

func TestHandler_InvalidRequests(t *testing.T) {
	r := newRouter(&fakeGenerator{text: "x"})

	bodies := []string{
		`not json`,
		`{"fileContent":"","cursorLine":0,"cursorColumn":0,"suggestionType":"completion"}`,
		`{"fileContent":"a","cursorLine":-1,"cursorColumn":0,"suggestionType":"completion"}`,
		`{"fileContent":"a","cursorLine":0,"cursorColumn":-3,"suggestionType":"completion"}`,
		`{"fileContent":"a","cursorLine":0,"cursorColumn":0,"suggestionType":""}`,
	}
	for _, body := range bodies {
		w := post(t, r, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.JSONEq(t, `{"error":"Invalid request parameters"}`, w.Body.String())
	}
}

func TestHandler_GeneratorFailure(t *testing.T) {
	r := newRouter(&fakeGenerator{err: errors.New("model not loaded")})

	w := post(t, r, `{"fileContent":"a","cursorLine":0,"cursorColumn":1,"suggestionType":"completion"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
}

func TestBuildPrompt_ContextWindow(t *testing.T) {
	var lines []string
	for i := 1; i <= 20; i++ {
		lines = append(lines, "line"+strings.Repeat("x", i%3))
	}
	req := SuggestionRequest{
		FileContent:    strings.Join(lines, "\n"),
		CursorLine:     10,
		CursorColumn:   4,
		SuggestionType: "completion",
	}

	window, first, last := contextWindow(req.FileContent, req.CursorLine, req.CursorColumn)
	assert.Equal(t, 6, first)
	assert.Equal(t, 15, last)
	assert.True(t, strings.HasPrefix(window, "6: "))
	assert.Contains(t, window, "11: line"+suggest.CursorMarker)
	assert.NotContains(t, window, "16: ")

	prompt := BuildPrompt(req)
	assert.Contains(t, prompt, "Lines 6-15")
	assert.Contains(t, prompt, "Cursor: line 11, column 5")
}

func TestBuildPrompt_CursorPastEnd(t *testing.T) {
	window, first, last := contextWindow("ab", 0, 10)
	assert.Equal(t, "1: ab"+suggest.CursorMarker, window)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, last)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "Go", DetectLanguage("", "main.go"))
	assert.Equal(t, "React/TypeScript", DetectLanguage("import React from 'react'", ""))
	assert.Equal(t, "JavaScript/TypeScript", DetectLanguage("const f = function() { return () => 1 }", ""))
	assert.Equal(t, "Unknown", DetectLanguage("SELECT 1", "q.sql"))
}

func TestClient_RoundTrip(t *testing.T) {
	gen := &fakeGenerator{text: "```ts\n42\n```"}
	srv := httptest.NewServer(newRouter(gen))
	defer srv.Close()

	c := NewClient(srv.URL+"/", nil)
	raw, err := c.Suggest(context.Background(), suggest.Request{
		ID:       1,
		TraceID:  "trace",
		Text:     "const x = ",
		Cursor:   suggest.Position{Line: 0, Column: 10},
		Kind:     suggest.KindVariable,
		FileName: "a.ts",
	})
	require.NoError(t, err)
	assert.Equal(t, "```ts\n42\n```", raw)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Suggest a variable")
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()
	req := suggest.Request{Text: "a", Cursor: suggest.Position{Column: 1}, Kind: suggest.KindCompletion}

	srv := httptest.NewServer(newRouter(&fakeGenerator{err: errors.New("boom")}))
	_, err := NewClient(srv.URL, nil).Suggest(ctx, req)
	assert.ErrorIs(t, err, suggest.ErrService)
	srv.Close()

	srv = httptest.NewServer(newRouter(&fakeGenerator{text: ""}))
	_, err = NewClient(srv.URL, nil).Suggest(ctx, req)
	assert.ErrorIs(t, err, suggest.ErrInvalidFormat)
	srv.Close()

	srv = httptest.NewServer(newRouter(&fakeGenerator{text: "x", delay: time.Second}))
	tctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	_, err = NewClient(srv.URL, nil).Suggest(tctx, req)
	cancel()
	assert.ErrorIs(t, err, suggest.ErrTimeout)
	srv.Close()

	_, err = NewClient("http://127.0.0.1:1", nil).Suggest(ctx, req)
	assert.ErrorIs(t, err, suggest.ErrService)
}

func TestClient_DrivesEngine(t *testing.T) {
	srv := httptest.NewServer(newRouter(&fakeGenerator{text: "1: compute()|CURSOR|"}))
	defer srv.Close()

	e := suggest.NewEngine(suggest.Options{Requester: NewClient(srv.URL, nil), Debounce: time.Hour})
	defer e.Close()
	e.SetDocument("a.ts", "const x = ", suggest.Position{Line: 0, Column: 10})

	slot, err := e.Request(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "compute()", slot.Text)
}

func TestOllama_Generate(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		io.WriteString(w, `{"model":"codellama:latest","response":"x + 1","done":true}`)
	}))
	defer srv.Close()

	o := NewOllama(Config{BaseURL: srv.URL + "/"})
	text, err := o.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "x + 1", text)
	assert.Equal(t, DefaultOllamaModel, got.Model)
	assert.Equal(t, "prompt", got.Prompt)
	assert.False(t, got.Stream)
}

func TestOllama_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"model 'codellama:latest' not found"}`)
	}))
	defer srv.Close()

	_, err := NewOllama(Config{BaseURL: srv.URL}).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOpenAI_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req map[string]any
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "gpt-test", req["model"])

		w.Header().Set("Content-Type", "application/json")
		io.Copy(w, bytes.NewBufferString(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"y()"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	g, err := NewGenerator(Config{Provider: "openai", BaseURL: srv.URL + "/v1", APIKey: "sk-test", Model: "gpt-test"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", g.Model())

	text, err := g.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "y()", text)
}

func TestNewGenerator(t *testing.T) {
	g, err := NewGenerator(Config{})
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, g)

	_, err = NewGenerator(Config{Provider: "openai"})
	assert.Error(t, err, "openai without key")

	_, err = NewGenerator(Config{Provider: "bard"})
	assert.Error(t, err)
}

func TestLocal_Suggest(t *testing.T) {
	gen := &fakeGenerator{text: "value"}
	text, err := NewLocal(gen).Suggest(context.Background(), suggest.Request{Text: "x = ", Cursor: suggest.Position{Column: 4}})
	require.NoError(t, err)
	assert.Equal(t, "value", text)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Suggest a completion")

	_, err = NewLocal(&fakeGenerator{err: errors.New("down")}).Suggest(context.Background(), suggest.Request{})
	assert.ErrorIs(t, err, suggest.ErrService)

	_, err = NewLocal(&fakeGenerator{}).Suggest(context.Background(), suggest.Request{})
	assert.ErrorIs(t, err, suggest.ErrInvalidFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = NewLocal(&fakeGenerator{text: "x", delay: time.Second}).Suggest(ctx, suggest.Request{})
	assert.ErrorIs(t, err, suggest.ErrTimeout)
}
