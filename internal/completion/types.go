// Package completion is the code suggestion service: an HTTP handler that
// turns editor context into a prompt for a language model, and the client
// the suggestion engine uses to call it.
package completion

// Route is the path the service is mounted on.
const Route = "/api/code-suggestion"

// SuggestionRequest is the JSON body of a suggestion request.
type SuggestionRequest struct {
	FileContent    string `json:"fileContent" validate:"required"`
	CursorLine     int    `json:"cursorLine" validate:"gte=0"`
	CursorColumn   int    `json:"cursorColumn" validate:"gte=0"`
	SuggestionType string `json:"suggestionType" validate:"required,max=32"`
	FileName       string `json:"fileName,omitempty" validate:"omitempty,max=255"`
}

// CursorPosition echoes the request cursor.
type CursorPosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Metadata describes how a suggestion was produced.
type Metadata struct {
	CursorPosition CursorPosition `json:"cursorPosition"`
	SuggestionType string         `json:"suggestionType"`
	ContextLines   int            `json:"contextLines"`
	Language       string         `json:"language,omitempty"`
	Model          string         `json:"model,omitempty"`
}

// SuggestionResponse is the success body.
type SuggestionResponse struct {
	Suggestion string    `json:"suggestion"`
	Metadata   *Metadata `json:"metadata,omitempty"`
}

// ErrorResponse is the failure body.
type ErrorResponse struct {
	Error string `json:"error"`
}
