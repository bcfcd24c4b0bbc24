package eventhub

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	name    string
	payload interface{}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []event
}

func (b *recordingBroadcaster) BroadcastEvent(eventType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event{eventType, payload})
}

func TestEventHub_NoBroadcaster(t *testing.T) {
	h := New(context.Background())
	assert.NotPanics(t, func() {
		h.FileSaved("a.ts")
		h.Notice("info", "hello")
	})
}

func TestEventHub_Events(t *testing.T) {
	h := New(context.Background())
	b := &recordingBroadcaster{}
	h.SetBroadcaster(b)

	h.FileSaved("src/a.ts")
	h.SaveSkipped("src/a.ts")
	h.SaveFailed("src/b.ts", errors.New("disk full"))
	h.RuntimeWriteFailed("src/b.ts", errors.New("offline"))
	h.TreeChanged("add-folder", "src")
	h.TreePersistFailed(errors.New("disk full"))
	h.SessionsClosed([]string{"src/a.ts"})
	h.RuntimeChanged("src/c.ts", "create")
	h.SuggestionChanged(map[string]bool{"loading": true})

	require.Len(t, b.events, 9)
	assert.Equal(t, event{"file:saved", FileSavedEvent{Path: "src/a.ts", Status: "saved"}}, b.events[0])
	assert.Equal(t, event{"file:saved", FileSavedEvent{Path: "src/a.ts", Status: "skipped"}}, b.events[1])
	assert.Equal(t, event{"file:save-failed", FileErrorEvent{Path: "src/b.ts", Error: "disk full"}}, b.events[2])
	assert.Equal(t, "runtime:write-failed", b.events[3].name)
	assert.Equal(t, TreeChangedEvent{Op: "add-folder", Path: "src"}, b.events[4].payload)
	assert.Equal(t, map[string]interface{}{"error": "disk full"}, b.events[5].payload)
	assert.Equal(t, map[string]interface{}{"ids": []string{"src/a.ts"}}, b.events[6].payload)
	assert.Equal(t, RuntimeChangedEvent{Path: "src/c.ts", Op: "create"}, b.events[7].payload)
	assert.Equal(t, "suggestion:changed", b.events[8].name)
}

func TestEventHub_SetBroadcasterConcurrently(t *testing.T) {
	h := New(context.Background())
	b := &recordingBroadcaster{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.SetBroadcaster(b)
			h.Notice("info", "x")
		}()
	}
	wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Len(t, b.events, 8)
}
