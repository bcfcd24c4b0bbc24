// Package suggest decides when to ask for an inline code completion and
// owns the lifecycle of the single suggestion shown in the editor.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"codepad/internal/logging"
	"codepad/internal/metrics"
)

var (
	ErrTimeout       = errors.New("suggestion request timed out")
	ErrService       = errors.New("suggestion service error")
	ErrInvalidFormat = errors.New("invalid suggestion format")
	ErrCursorDrifted = errors.New("cursor moved away from suggestion")
	ErrNoSuggestion  = errors.New("no suggestion")
	ErrSuperseded    = errors.New("suggestion request superseded")
	ErrDisabled      = errors.New("suggestions disabled")
)

const (
	DefaultDebounce = 300 * time.Millisecond
	DefaultTimeout  = 10 * time.Second
)

// Request is what the engine sends to the suggestion service.
type Request struct {
	ID       uint64
	TraceID  string
	Text     string
	Cursor   Position
	Kind     Kind
	FileName string
}

// Requester fetches one raw completion.
type Requester interface {
	Suggest(ctx context.Context, req Request) (string, error)
}

// Slot is the suggestion currently offered to the user.
type Slot struct {
	Text      string   `json:"text"`
	Anchor    Position `json:"anchor"`
	RequestID uint64   `json:"requestId"`
	Kind      Kind     `json:"kind"`
}

// State is what the editor surface renders.
type State struct {
	Slot    *Slot `json:"slot,omitempty"`
	Loading bool  `json:"loading"`
	Enabled bool  `json:"enabled"`
}

type Options struct {
	Requester Requester
	Policy    TriggerPolicy
	Debounce  time.Duration
	Timeout   time.Duration
	// Cache and Limiter are optional.
	Cache   *Cache
	Limiter *rate.Limiter
	Logger  *zap.Logger
	// OnChange is called after every state change, outside the engine lock.
	OnChange func(State)
}

// Engine is the suggestion state machine: idle, requesting, then idle with
// or without a slot. All methods are safe for concurrent use.
type Engine struct {
	requester Requester
	policy    TriggerPolicy
	debounce  time.Duration
	timeout   time.Duration
	cache     *Cache
	limiter   *rate.Limiter
	log       *zap.Logger
	onChange  func(State)

	mu       sync.Mutex
	enabled  bool
	closed   bool
	fileName string
	ext      string
	text     string
	cursor   Position
	slot     *Slot
	loading  bool
	seq      uint64
	cancel   context.CancelFunc
	timer    *time.Timer
	// timerSeq identifies the armed timer. A callback whose Stop came too
	// late sees a different value and does nothing.
	timerSeq uint64

	wg sync.WaitGroup
}

func NewEngine(opts Options) *Engine {
	if opts.Policy == (TriggerPolicy{}) {
		opts.Policy = DefaultPolicy()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Named("suggest")
	}
	return &Engine{
		requester: opts.Requester,
		policy:    opts.Policy,
		debounce:  opts.Debounce,
		timeout:   opts.Timeout,
		cache:     opts.Cache,
		limiter:   opts.Limiter,
		log:       opts.Logger,
		onChange:  opts.OnChange,
		enabled:   true,
	}
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() State {
	st := State{Loading: e.loading, Enabled: e.enabled}
	if e.slot != nil {
		s := *e.slot
		st.Slot = &s
	}
	return st
}

func (e *Engine) notify() {
	if e.onChange == nil {
		return
	}
	e.onChange(e.State())
}

// SetDocument switches the engine to another document, dropping any
// suggestion for the previous one.
func (e *Engine) SetDocument(fileName, text string, cursor Position) {
	e.mu.Lock()
	changed := e.supersedeLocked("invalidated")
	e.fileName = fileName
	_, e.ext = splitExt(fileName)
	e.text = text
	e.cursor = cursor
	e.mu.Unlock()

	if changed {
		e.notify()
	}
}

func splitExt(name string) (string, string) {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

// SetEnabled turns automatic and manual suggestions on or off.
func (e *Engine) SetEnabled(on bool) {
	e.mu.Lock()
	if e.enabled == on {
		e.mu.Unlock()
		return
	}
	e.enabled = on
	if !on {
		e.supersedeLocked("invalidated")
	}
	e.mu.Unlock()
	e.notify()
}

// Toggle flips the enabled flag and returns the new value.
func (e *Engine) Toggle() bool {
	e.mu.Lock()
	on := !e.enabled
	e.mu.Unlock()
	e.SetEnabled(on)
	return on
}

// CursorMoved reports a cursor move without a content change.
func (e *Engine) CursorMoved(pos Position) {
	e.mu.Lock()
	prev := e.cursor
	e.cursor = pos
	changed := false
	if e.slot != nil && !e.policy.within(e.slot.Anchor, pos) {
		e.slot = nil
		metrics.RecordSuggestionOutcome("invalidated")
		changed = true
	}
	e.evaluateLocked(prev, 0)
	e.mu.Unlock()

	if changed {
		e.notify()
	}
}

// ContentChanged reports an edit. A displayed suggestion survives only if
// the edit inserts exactly its text at its anchor, in which case it counts
// as accepted. Any in-flight request is abandoned.
func (e *Engine) ContentChanged(ch Change) {
	e.mu.Lock()
	prev := e.cursor
	changed := false
	if e.slot != nil {
		outcome := "invalidated"
		if ch.Removed == 0 && ch.At == e.slot.Anchor && ch.Inserted == e.slot.Text {
			outcome = "accepted"
		}
		e.slot = nil
		metrics.RecordSuggestionOutcome(outcome)
		changed = true
	}
	if e.loading {
		e.abandonLocked()
		changed = true
	}
	e.text = ch.Text
	e.cursor = ch.Cursor
	e.evaluateLocked(prev, typedRune(ch.Inserted))
	e.mu.Unlock()

	if changed {
		e.notify()
	}
}

// Replace reports a whole-document replacement with no position detail,
// such as a full-buffer edit from outside the editor. The slot is dropped,
// any in-flight request abandoned, and the cursor clamped to the new text.
// Nothing is triggered.
func (e *Engine) Replace(text string) {
	e.mu.Lock()
	changed := e.supersedeLocked("invalidated")
	e.text = text
	e.cursor = clamp(text, e.cursor)
	e.mu.Unlock()

	if changed {
		e.notify()
	}
}

// clamp moves pos back inside text.
func clamp(text string, pos Position) Position {
	lines := strings.Count(text, "\n")
	if pos.Line > lines {
		pos.Line = lines
	}
	if pos.Line < 0 {
		pos.Line = 0
	}
	if n := utf8.RuneCountInString(lineAt(text, pos.Line)); pos.Column > n {
		pos.Column = n
	}
	if pos.Column < 0 {
		pos.Column = 0
	}
	return pos
}

// typedRune returns the keystroke an insertion represents, or 0 for pastes.
// Enter followed by auto-indent counts as a newline.
func typedRune(inserted string) rune {
	if utf8.RuneCountInString(inserted) == 1 {
		r, _ := utf8.DecodeRuneInString(inserted)
		return r
	}
	if strings.HasPrefix(inserted, "\n") && strings.TrimSpace(inserted) == "" {
		return '\n'
	}
	return 0
}

// Reject clears the slot and abandons any pending request.
func (e *Engine) Reject() bool {
	e.mu.Lock()
	changed := e.supersedeLocked("rejected")
	e.mu.Unlock()

	if changed {
		e.notify()
	}
	return changed
}

// Accept turns the slot into an edit at its anchor. The cursor must still be
// within the tolerance window; otherwise the slot is dropped and
// ErrCursorDrifted returned with no edit.
func (e *Engine) Accept(cursor Position) (Edit, error) {
	e.mu.Lock()
	if e.slot == nil {
		e.mu.Unlock()
		return Edit{}, ErrNoSuggestion
	}
	slot := *e.slot
	e.slot = nil
	if !e.policy.within(slot.Anchor, cursor) {
		e.mu.Unlock()
		metrics.RecordSuggestionOutcome("invalidated")
		e.notify()
		return Edit{}, ErrCursorDrifted
	}

	edit := Edit{At: slot.Anchor, Text: slot.Text, CursorAfter: endOf(slot.Anchor, slot.Text)}
	e.text = ApplyEdit(e.text, edit)
	e.cursor = edit.CursorAfter
	e.mu.Unlock()

	metrics.RecordSuggestionOutcome("accepted")
	e.notify()
	return edit, nil
}

// Request fetches a suggestion now, bypassing debounce, trigger policy and
// rate limiting. It supersedes any pending request. An empty kind is
// derived from the analysed context.
func (e *Engine) Request(ctx context.Context, kind Kind) (Slot, error) {
	e.mu.Lock()
	if e.closed || !e.enabled {
		e.mu.Unlock()
		return Slot{}, ErrDisabled
	}
	if e.requester == nil {
		e.mu.Unlock()
		return Slot{}, fmt.Errorf("%w: no requester configured", ErrService)
	}
	if kind == "" {
		kind = Analyze(e.text, e.cursor, e.ext).SuggestionKind()
	}
	req, rctx := e.beginLocked(ctx, kind)
	e.mu.Unlock()

	e.notify()
	return e.run(rctx, req)
}

// Close cancels pending work and waits for in-flight requests to finish.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.supersedeLocked("invalidated")
	e.mu.Unlock()
	e.wg.Wait()
}

// evaluateLocked schedules a debounced request when the policy allows.
func (e *Engine) evaluateLocked(prev Position, typed rune) {
	if !e.enabled || e.closed || e.requester == nil {
		return
	}
	if !e.policy.ShouldTrigger(e.text, prev, e.cursor, typed, e.loading) {
		return
	}
	e.stopTimerLocked()
	seq := e.timerSeq
	e.timer = time.AfterFunc(e.debounce, func() { e.fire(seq) })
}

func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerSeq++
}

func (e *Engine) fire(seq uint64) {
	e.mu.Lock()
	if seq != e.timerSeq {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	if !e.enabled || e.closed || e.loading {
		e.mu.Unlock()
		return
	}
	actx := Analyze(e.text, e.cursor, e.ext)
	if actx.InComment() {
		e.mu.Unlock()
		return
	}
	if e.limiter != nil && !e.limiter.Allow() {
		e.mu.Unlock()
		metrics.RecordSuggestionRequest("throttled", 0)
		e.log.Debug("suggestion trigger throttled")
		return
	}
	req, ctx := e.beginLocked(context.Background(), actx.SuggestionKind())
	e.wg.Add(1)
	e.mu.Unlock()

	e.notify()
	go func() {
		defer e.wg.Done()
		if _, err := e.run(ctx, req); err != nil && !errors.Is(err, ErrSuperseded) {
			e.log.Debug("no suggestion", zap.Uint64("request_id", req.ID), zap.Error(err))
		}
	}()
}

// beginLocked supersedes whatever is pending and starts a new request
// anchored at the current cursor.
func (e *Engine) beginLocked(parent context.Context, kind Kind) (Request, context.Context) {
	e.supersedeLocked("superseded")
	e.seq++
	ctx, cancel := context.WithTimeout(parent, e.timeout)
	e.cancel = cancel
	e.loading = true
	return Request{
		ID:       e.seq,
		TraceID:  uuid.NewString(),
		Text:     e.text,
		Cursor:   e.cursor,
		Kind:     kind,
		FileName: e.fileName,
	}, ctx
}

// supersedeLocked stops the debounce timer, abandons any in-flight request
// and clears the slot. It reports whether visible state changed.
func (e *Engine) supersedeLocked(outcome string) bool {
	changed := false
	e.stopTimerLocked()
	if e.loading {
		e.abandonLocked()
		changed = true
	}
	if e.slot != nil {
		e.slot = nil
		metrics.RecordSuggestionOutcome(outcome)
		changed = true
	}
	return changed
}

// abandonLocked bumps the sequence so the in-flight response is discarded.
func (e *Engine) abandonLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.loading = false
	e.seq++
}

func (e *Engine) run(ctx context.Context, req Request) (Slot, error) {
	start := time.Now()
	log := e.log.With(zap.Uint64("request_id", req.ID), zap.String("trace_id", req.TraceID))

	key := NewCacheKey(req.Text, req.Cursor, req.Kind)
	if e.cache != nil {
		if text, ok := e.cache.Get(key); ok {
			metrics.RecordSuggestionCache(true)
			return e.finish(req, text, nil, "cached", time.Since(start))
		}
		metrics.RecordSuggestionCache(false)
	}

	raw, err := e.requester.Suggest(ctx, req)
	text := ""
	if err == nil {
		text, err = Sanitize(raw)
	}
	err = classify(ctx, err)
	if err == nil && e.cache != nil {
		e.cache.Put(key, text)
	}
	if err != nil && !errors.Is(err, ErrSuperseded) {
		log.Warn("suggestion request failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	}
	return e.finish(req, text, err, "ok", time.Since(start))
}

// classify maps requester failures onto the package error taxonomy.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrService), errors.Is(err, ErrInvalidFormat):
		return err
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(ctx.Err(), context.Canceled):
		return ErrSuperseded
	}
	return fmt.Errorf("%w: %v", ErrService, err)
}

// finish installs the result if req is still the current request and the
// cursor has not left the anchor.
func (e *Engine) finish(req Request, text string, err error, result string, d time.Duration) (Slot, error) {
	e.mu.Lock()
	if req.ID != e.seq || !e.loading {
		e.mu.Unlock()
		metrics.RecordSuggestionRequest("stale", d)
		return Slot{}, ErrSuperseded
	}
	e.loading = false
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}

	if err != nil {
		e.mu.Unlock()
		metrics.RecordSuggestionRequest(resultLabel(err), d)
		e.notify()
		return Slot{}, err
	}
	if !e.policy.within(req.Cursor, e.cursor) {
		e.mu.Unlock()
		metrics.RecordSuggestionRequest("drifted", d)
		e.notify()
		return Slot{}, ErrCursorDrifted
	}

	slot := Slot{Text: text, Anchor: req.Cursor, RequestID: req.ID, Kind: req.Kind}
	e.slot = &slot
	e.mu.Unlock()

	metrics.RecordSuggestionRequest(result, d)
	e.notify()
	return slot, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrInvalidFormat):
		return "invalid"
	case errors.Is(err, ErrSuperseded):
		return "stale"
	}
	return "error"
}
