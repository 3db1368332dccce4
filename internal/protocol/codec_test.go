package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	payload := []byte(`{"jsonrpc":"2.0","id":"t1","method":"get_license_plan","params":{}}`)

	req, err := DecodeRequest(payload, 0)
	require.NoError(t, err)
	assert.Equal(t, "t1", req.CorrelationID)
	assert.Equal(t, "get_license_plan", req.Method)
	assert.Empty(t, req.Params)
}

func TestDecodeRequestCorrelationIDForms(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		expected string
	}{
		{"string", `"abc"`, "abc"},
		{"integer", `7`, "7"},
		{"float", `1.5`, "1.5"},
		{"null", `null`, "unknown"},
		{"object", `{"x":1}`, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := `{"jsonrpc":"2.0","id":` + tt.id + `,"method":"verify","params":{}}`
			req, err := DecodeRequest([]byte(payload), 0)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, req.CorrelationID)
		})
	}
}

func TestDecodeRequestMissingID(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"jsonrpc":"2.0","method":"verify","params":{}}`), 0)
	require.NoError(t, err)
	assert.Equal(t, UnknownCorrelationID, req.CorrelationID)
}

func TestDecodeRequestParamExtraction(t *testing.T) {
	payload := []byte(`{
		"jsonrpc": "2.0",
		"id": "t2",
		"method": "update",
		"params": {
			"new_expiry": "2027-01-01",
			"seats": 25,
			"check_expiry": true,
			"ratio": 0.5,
			"license_file": "/etc/passwd",
			"nested": {"ignored": true},
			"list": [1, 2]
		}
	}`)

	req, err := DecodeRequest(payload, 0)
	require.NoError(t, err)

	assert.Equal(t, "2027-01-01", req.Params["new_expiry"])
	assert.Equal(t, "25", req.Params["seats"])
	assert.Equal(t, "true", req.Params["check_expiry"])
	assert.Equal(t, "0.5", req.Params["ratio"])

	// The reserved path parameter and non-primitive values are dropped.
	assert.NotContains(t, req.Params, "license_file")
	assert.NotContains(t, req.Params, "nested")
	assert.NotContains(t, req.Params, "list")
}

func TestDecodeRequestErrors(t *testing.T) {
	t.Run("envelope too large", func(t *testing.T) {
		big := `{"jsonrpc":"2.0","id":"t","method":"verify","params":{"pad":"` +
			strings.Repeat("x", 1024) + `"}}`
		req, err := DecodeRequest([]byte(big), 128)
		assert.Nil(t, req)
		assert.ErrorIs(t, err, ErrEnvelopeTooLarge)
	})

	t.Run("not json", func(t *testing.T) {
		req, err := DecodeRequest([]byte("not json"), 0)
		assert.Nil(t, req)
		assert.Error(t, err)
	})

	t.Run("wrong version", func(t *testing.T) {
		req, err := DecodeRequest([]byte(`{"jsonrpc":"1.0","id":"t","method":"verify","params":{}}`), 0)
		assert.Nil(t, req)
		assert.ErrorIs(t, err, ErrBadVersion)
	})

	t.Run("missing method keeps correlation id", func(t *testing.T) {
		req, err := DecodeRequest([]byte(`{"jsonrpc":"2.0","id":"t3","params":{}}`), 0)
		require.ErrorIs(t, err, ErrMissingMethod)
		require.NotNil(t, req)
		assert.Equal(t, "t3", req.CorrelationID)
	})

	t.Run("missing params keeps correlation id", func(t *testing.T) {
		req, err := DecodeRequest([]byte(`{"jsonrpc":"2.0","id":"t4","method":"verify"}`), 0)
		require.ErrorIs(t, err, ErrMissingParams)
		require.NotNil(t, req)
		assert.Equal(t, "t4", req.CorrelationID)
	})

	t.Run("params not an object", func(t *testing.T) {
		_, err := DecodeRequest([]byte(`{"jsonrpc":"2.0","id":"t5","method":"verify","params":[1]}`), 0)
		assert.True(t, errors.Is(err, ErrMissingParams))
	})
}

func TestNewSuccessResponse(t *testing.T) {
	t.Run("structured result", func(t *testing.T) {
		resp := NewSuccessResponse("t1", []byte(`{"plan":"pro"}`))
		out, err := resp.Encode()
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(out, &decoded))
		assert.Equal(t, "2.0", decoded["jsonrpc"])
		assert.Equal(t, "t1", decoded["id"])
		assert.Equal(t, true, decoded["success"])
		assert.Equal(t, map[string]any{"plan": "pro"}, decoded["result"])
	})

	t.Run("plain string result", func(t *testing.T) {
		resp := NewSuccessResponse("t1", []byte("all good"))
		assert.Equal(t, "all good", resp.Result)
	})

	t.Run("empty result gets default message", func(t *testing.T) {
		resp := NewSuccessResponse("t1", nil)
		assert.Equal(t, "Operation completed successfully", resp.Result)
	})
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("t9", "Unknown operation: frobnicate")
	out, err := resp.Encode()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, false, decoded["success"])
	assert.Equal(t, "", decoded["result"])
	assert.Equal(t, "Unknown operation: frobnicate", decoded["message"])
	assert.Equal(t, "t9", decoded["id"])
}
