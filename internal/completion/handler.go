package completion

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"codepad/internal/logging"
)

// Handler serves suggestion requests with a Generator.
type Handler struct {
	gen      Generator
	validate *validator.Validate
	log      *zap.Logger
}

func NewHandler(gen Generator) *Handler {
	return &Handler{
		gen:      gen,
		validate: validator.New(),
		log:      logging.Named("completion"),
	}
}

// Register mounts the handler on r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST(Route, h.Suggest)
}

// Suggest handles POST /api/code-suggestion.
//
// Responses:
//
//	200 OK: SuggestionResponse
//	400 Bad Request: malformed body or parameters
//	500 Internal Server Error: generator failure
func (h *Handler) Suggest(c *gin.Context) {
	var req SuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug("invalid suggestion body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request parameters"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.log.Debug("invalid suggestion parameters", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request parameters"})
		return
	}

	log := h.log.With(
		zap.String("type", req.SuggestionType),
		zap.Int("line", req.CursorLine),
		zap.Int("column", req.CursorColumn))

	text, err := h.gen.Generate(c.Request.Context(), BuildPrompt(req))
	if err != nil {
		log.Error("generate suggestion failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to generate suggestion"})
		return
	}
	log.Debug("suggestion generated", zap.Int("bytes", len(text)))

	c.JSON(http.StatusOK, SuggestionResponse{
		Suggestion: text,
		Metadata: &Metadata{
			CursorPosition: CursorPosition{Line: req.CursorLine, Column: req.CursorColumn},
			SuggestionType: req.SuggestionType,
			ContextLines:   contextLines(req.FileContent),
			Language:       DetectLanguage(req.FileContent, req.FileName),
			Model:          h.gen.Model(),
		},
	})
}
