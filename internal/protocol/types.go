package protocol

import "encoding/json"

// Version is the JSON-RPC version tag accepted on requests and echoed on
// responses.
const Version = "2.0"

// ReservedPathParam is always stripped from request parameters; the
// server-side configured license path wins, regardless of what the caller
// sends.
const ReservedPathParam = "license_file"

// UnknownCorrelationID is used when a request carries no usable id. Responses
// to such requests still go out so the failure is observable.
const UnknownCorrelationID = "unknown"

// Request is the decoded request envelope. Params holds only primitive
// values (string, number, boolean), stringified the way the operation layer
// expects them.
type Request struct {
	CorrelationID string
	Method        string
	Params        map[string]string
}

// Response is the wire response envelope.
type Response struct {
	Jsonrpc string `json:"jsonrpc"`
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Result  any    `json:"result"`
	Message string `json:"message"`
}

// envelope is the raw shape of an inbound request before validation.
type envelope struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}
