package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrEnvelopeTooLarge means the serialized envelope exceeded the
	// configured bound. No response is owed; the caller logs and drops.
	ErrEnvelopeTooLarge = errors.New("request envelope too large")

	// ErrBadVersion means the jsonrpc tag is missing or not "2.0". These
	// are dropped without a response.
	ErrBadVersion = errors.New("invalid or missing JSON-RPC version")

	// ErrMissingMethod and ErrMissingParams are correlatable failures: the
	// decoded request carries the id, and the caller must answer with an
	// error response.
	ErrMissingMethod = errors.New("missing method in request")
	ErrMissingParams = errors.New("missing or invalid params in request")
)

// DecodeRequest parses and validates an inbound request envelope.
//
// On ErrMissingMethod and ErrMissingParams the returned Request is non-nil
// and carries the correlation id, so the caller can publish a correlated
// error response. On all other errors the request is not correlatable and
// the returned Request is nil.
func DecodeRequest(payload []byte, maxBytes int) (*Request, error) {
	if maxBytes > 0 && len(payload) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max: %d bytes)", ErrEnvelopeTooLarge, len(payload), maxBytes)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}

	if env.Jsonrpc != Version {
		return nil, ErrBadVersion
	}

	req := &Request{CorrelationID: correlationID(env.ID)}

	if env.Method == "" {
		return req, ErrMissingMethod
	}
	req.Method = env.Method

	params, err := decodeParams(env.Params)
	if err != nil {
		return req, err
	}
	req.Params = params

	return req, nil
}

// correlationID normalizes the caller-supplied id. Strings pass through,
// numbers become decimal strings, anything else is "unknown".
func correlationID(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return UnknownCorrelationID
	}
}

// decodeParams extracts primitive parameter values into strings. Nested
// objects and arrays are skipped, and the reserved path parameter is always
// dropped.
func decodeParams(raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, ErrMissingParams
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, ErrMissingParams
	}

	params := make(map[string]string, len(obj))
	for key, val := range obj {
		if key == ReservedPathParam {
			continue
		}
		switch v := val.(type) {
		case string:
			params[key] = v
		case float64:
			if v == float64(int64(v)) {
				params[key] = strconv.FormatInt(int64(v), 10)
			} else {
				params[key] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		case bool:
			params[key] = strconv.FormatBool(v)
		}
	}
	return params, nil
}

// NewSuccessResponse builds a success envelope. A result that parses as JSON
// is embedded as structured data; anything else is included as a string, and
// an empty result becomes a default success message.
func NewSuccessResponse(correlationID string, result []byte) *Response {
	resp := &Response{
		Jsonrpc: Version,
		ID:      correlationID,
		Success: true,
		Message: "Operation completed successfully",
	}

	switch {
	case len(result) == 0:
		resp.Result = "Operation completed successfully"
	case json.Valid(result):
		resp.Result = json.RawMessage(result)
	default:
		resp.Result = string(result)
	}
	return resp
}

// NewErrorResponse builds a failure envelope. Result is always the empty
// string on failure; the message carries the error.
func NewErrorResponse(correlationID, message string) *Response {
	return &Response{
		Jsonrpc: Version,
		ID:      correlationID,
		Success: false,
		Result:  "",
		Message: message,
	}
}

// Encode serializes a response envelope.
func (r *Response) Encode() ([]byte, error) {
	out, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return out, nil
}
