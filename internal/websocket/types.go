// internal/websocket/types.go
package websocket

// RPCRequest is a call from the editor surface.
type RPCRequest struct {
	ID     string        `json:"id"`     // echoed in the response
	Method string        `json:"method"` // App method name, e.g. "SaveFile"
	Params []interface{} `json:"params"` // positional arguments
}

// RPCResponse answers one RPCRequest.
type RPCResponse struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// WSEvent is pushed by the server without a request.
type WSEvent struct {
	Type    string      `json:"type"` // e.g. "file:saved"
	Payload interface{} `json:"payload"`
}

// WSMessage is the envelope for everything on the wire.
type WSMessage struct {
	// "rpc_request", "rpc_response" or "event"
	Kind string `json:"kind"`

	Request  *RPCRequest  `json:"request,omitempty"`
	Response *RPCResponse `json:"response,omitempty"`
	Event    *WSEvent     `json:"event,omitempty"`
}
