package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Version is the only JSON-RPC protocol version this tool speaks.
const Version = "2.0"

// Error is a well-formed JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// IndexingErrorCode is returned by servers that are still building their
// index; Phase A retries on exactly this code.
const IndexingErrorCode = -32801

// request is the wire shape of a JSON-RPC request.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// notification is the wire shape of a JSON-RPC notification: identical
// to a request but with no id.
type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// BuildRequest marshals a request frame with the given id and method.
func BuildRequest(id int, method string, params any) ([]byte, error) {
	return json.Marshal(request{JSONRPC: Version, ID: id, Method: method, Params: params})
}

// BuildNotification marshals a notification frame (no id).
func BuildNotification(method string, params any) ([]byte, error) {
	return json.Marshal(notification{JSONRPC: Version, Method: method, Params: params})
}

// rawResponse is the wire shape of a response, before the result/error
// exclusivity check is applied.
type rawResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int            `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Response is a response frame parsed into the id plus an Ok/Err
// discriminated outcome: Err is non-nil for an error response;
// otherwise Result holds the decoded result. Callers should test Err
// first.
type Response[T any] struct {
	ID     *int
	Result T
	Err    *Error
}

// ParseResponse decodes a single response object out of buf. A response
// with both result and error present is malformed and is reported as an
// error so the caller can drop the frame with a warning. A response
// with neither (result null or absent, and no error) is Ok with the
// zero value of T, whatever T is; callers that legitimately expect an
// optional result can choose a pointer/slice/map T to tell it apart.
func ParseResponse[T any](buf []byte) (Response[T], error) {
	var raw rawResponse
	if err := json.Unmarshal(buf, &raw); err != nil {
		return Response[T]{}, fmt.Errorf("parse response: %w", err)
	}

	hasResult := len(raw.Result) > 0 && string(raw.Result) != "null"
	if raw.Error != nil && hasResult {
		return Response[T]{}, fmt.Errorf("parse response: both result and error present")
	}
	if raw.Error == nil && !hasResult {
		// A legitimately optional result (null/absent) is only valid
		// when there is also no error; treat it as Ok with the zero
		// value rather than malformed, since many LSP responses are
		// allowed to answer with a null result.
		return Response[T]{ID: raw.ID}, nil
	}
	if raw.Error != nil {
		return Response[T]{ID: raw.ID, Err: raw.Error}, nil
	}

	var result T
	if err := json.Unmarshal(raw.Result, &result); err != nil {
		return Response[T]{}, fmt.Errorf("parse response: decode result: %w", err)
	}
	return Response[T]{ID: raw.ID, Result: result}, nil
}

// PeekID extracts just the id field from a generic JSON-RPC message,
// used by the client's router to dispatch a frame without knowing its
// result type up front.
func PeekID(buf []byte) (id int, ok bool) {
	var head struct {
		ID *int `json:"id"`
	}
	if err := json.Unmarshal(buf, &head); err != nil || head.ID == nil {
		return 0, false
	}
	return *head.ID, true
}
