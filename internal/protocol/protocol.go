package protocol

import "encoding/json"

const (
	JSONRPCVersion = "2.0"
	Version        = "1.0"
)

// Methods served by a world node.
const (
	MethodExecute    = "execute"
	MethodReadRecord = "read_record"
)

// BaseMessage lets either side route a frame before decoding it fully.
type BaseMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
