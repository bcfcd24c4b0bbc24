package eventhub

import (
	"context"
	"sync"
)

// Broadcaster delivers one event to every connected editor surface.
type Broadcaster interface {
	BroadcastEvent(eventType string, payload interface{})
}

// EventHub is the single place workspace and suggestion events leave the
// process. It stands in for the toast/notice surface of the editor.
type EventHub struct {
	ctx         context.Context
	mu          sync.RWMutex
	broadcaster Broadcaster
}

// New creates an EventHub with no broadcaster attached.
func New(ctx context.Context) *EventHub {
	return &EventHub{ctx: ctx}
}

// SetBroadcaster attaches the websocket broadcaster.
func (h *EventHub) SetBroadcaster(b Broadcaster) {
	h.mu.Lock()
	h.broadcaster = b
	h.mu.Unlock()
}

func (h *EventHub) emit(eventName string, payload interface{}) {
	h.mu.RLock()
	b := h.broadcaster
	h.mu.RUnlock()
	if b != nil {
		b.BroadcastEvent(eventName, payload)
	}
}

// Emit sends an arbitrary event.
func (h *EventHub) Emit(eventName string, payload interface{}) {
	h.emit(eventName, payload)
}

// File save events
type FileSavedEvent struct {
	Path   string `json:"path"`
	Status string `json:"status"` // "saved", "skipped"
}

type FileErrorEvent struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

func (h *EventHub) FileSaved(path string) {
	h.emit("file:saved", FileSavedEvent{Path: path, Status: "saved"})
}

// SaveSkipped is informational: the file had no unsaved changes.
func (h *EventHub) SaveSkipped(path string) {
	h.emit("file:saved", FileSavedEvent{Path: path, Status: "skipped"})
}

func (h *EventHub) SaveFailed(path string, err error) {
	h.emit("file:save-failed", FileErrorEvent{Path: path, Error: err.Error()})
}

func (h *EventHub) RuntimeWriteFailed(path string, err error) {
	h.emit("runtime:write-failed", FileErrorEvent{Path: path, Error: err.Error()})
}

// Tree events
type TreeChangedEvent struct {
	Op   string `json:"op"` // "add-file", "add-folder", "delete-file", ...
	Path string `json:"path"`
}

func (h *EventHub) TreeChanged(op, path string) {
	h.emit("tree:changed", TreeChangedEvent{Op: op, Path: path})
}

func (h *EventHub) TreePersistFailed(err error) {
	h.emit("tree:persist-failed", map[string]interface{}{
		"error": err.Error(),
	})
}

// SessionsClosed reports sessions force-closed by a structural delete.
func (h *EventHub) SessionsClosed(ids []string) {
	h.emit("session:closed", map[string]interface{}{
		"ids": ids,
	})
}

// Runtime filesystem events
type RuntimeChangedEvent struct {
	Path string `json:"path"`
	Op   string `json:"op"`
}

func (h *EventHub) RuntimeChanged(path, op string) {
	h.emit("runtime:changed", RuntimeChangedEvent{Path: path, Op: op})
}

// SuggestionChanged carries the renderable suggestion state.
func (h *EventHub) SuggestionChanged(state interface{}) {
	h.emit("suggestion:changed", state)
}

// Notice is a free-form user-facing message.
func (h *EventHub) Notice(level, message string) {
	h.emit("notice", map[string]interface{}{
		"level":   level,
		"message": message,
	})
}
