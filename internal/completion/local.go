package completion

import (
	"context"
	"errors"
	"fmt"

	"codepad/internal/suggest"
)

// Local serves suggest.Requester in process, calling the generator without
// an HTTP hop.
type Local struct {
	gen Generator
}

func NewLocal(gen Generator) *Local {
	return &Local{gen: gen}
}

// Suggest implements suggest.Requester.
func (l *Local) Suggest(ctx context.Context, r suggest.Request) (string, error) {
	kind := r.Kind
	if kind == "" {
		kind = suggest.KindCompletion
	}
	text, err := l.gen.Generate(ctx, BuildPrompt(SuggestionRequest{
		FileContent:    r.Text,
		CursorLine:     r.Cursor.Line,
		CursorColumn:   r.Cursor.Column,
		SuggestionType: string(kind),
		FileName:       r.FileName,
	}))
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		return "", fmt.Errorf("%w: %v", suggest.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return "", err
	default:
		return "", fmt.Errorf("%w: %v", suggest.ErrService, err)
	}
	if text == "" {
		return "", suggest.ErrInvalidFormat
	}
	return text, nil
}
