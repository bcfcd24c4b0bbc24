package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type testApp struct{}

func (testApp) Add(a, b int) int { return a + b }

func (testApp) Join(parts []string) string { return strings.Join(parts, "/") }

func (testApp) Move(p point) point { return point{p.Line + 1, p.Column} }

func (testApp) Deadline(ctx context.Context, name string) (bool, error) {
	_, ok := ctx.Deadline()
	return ok, nil
}

func (testApp) Fail() error { return errors.New("nope") }

func TestRouter_Call(t *testing.T) {
	r := NewRouter(testApp{})
	ctx := context.Background()

	out, err := r.Call(ctx, "Add", []interface{}{float64(2), float64(3)})
	require.NoError(t, err)
	assert.Equal(t, 5, out)

	out, err = r.Call(ctx, "Join", []interface{}{[]interface{}{"src", "index.ts"}})
	require.NoError(t, err)
	assert.Equal(t, "src/index.ts", out)

	out, err = r.Call(ctx, "Move", []interface{}{map[string]interface{}{"line": float64(1), "column": float64(4)}})
	require.NoError(t, err)
	assert.Equal(t, point{2, 4}, out)

	tctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	out, err = r.Call(tctx, "Deadline", []interface{}{"x"})
	require.NoError(t, err)
	assert.Equal(t, true, out)

	_, err = r.Call(ctx, "Fail", nil)
	assert.EqualError(t, err, "nope")

	_, err = r.Call(ctx, "Missing", nil)
	assert.Error(t, err)
	_, err = r.Call(ctx, "Add", []interface{}{float64(1)})
	assert.Error(t, err)

	assert.Contains(t, r.Methods(), "Move")
}

func TestServer_RPCAndEvents(t *testing.T) {
	s := NewServer(testApp{}, Options{CallTimeout: time.Second})
	srv := httptest.NewServer(http.HandlerFunc(s.HandleWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(WSMessage{
		Kind:    "rpc_request",
		Request: &RPCRequest{ID: "1", Method: "Add", Params: []interface{}{1, 2}},
	}))

	var msg WSMessage
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "rpc_response", msg.Kind)
	assert.Equal(t, "1", msg.Response.ID)
	assert.Equal(t, float64(3), msg.Response.Result)

	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	s.BroadcastEvent("file:saved", map[string]string{"path": "a.ts"})

	msg = WSMessage{}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "event", msg.Kind)
	assert.Equal(t, "file:saved", msg.Event.Type)

	conn.Close()
	assert.Eventually(t, func() bool { return s.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestServer_AuthKey(t *testing.T) {
	s := NewServer(testApp{}, Options{AuthKey: "secret"})
	srv := httptest.NewServer(http.HandlerFunc(s.HandleWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	c := NewClient("c", nil)
	c.Close()
	c.Close()
	assert.ErrorIs(t, c.SendEvent("x", nil), ErrClientClosed)
}
