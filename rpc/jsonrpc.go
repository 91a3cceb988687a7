package rpc

import (
	"encoding/json"

	"github.com/BrightTonyTech/taskledger/errors"
)

// Request is a JSON-RPC 2.0 request. A nil ID marks a notification,
// which never gets a response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Notification is a JSON-RPC 2.0 server-push message.
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Standard JSON-RPC 2.0 error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Ledger rejection codes, in the implementation-defined server range.
const (
	CodeNotFound     = -32001
	CodeInvalidState = -32002
	CodeUnauthorized = -32003
	CodeTimeout      = -32004
	CodeUnavailable  = -32005
)

// parseMessage decodes an inbound frame into a Request. The returned
// request has a nil ID when the frame is a notification.
func parseMessage(data []byte) (*Request, *Error) {
	var probe struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &Error{Code: ParseError, Message: "Parse error", Data: err.Error()}
	}
	if probe.JSONRPC != "2.0" {
		return nil, &Error{Code: InvalidRequest, Message: "Invalid Request", Data: "jsonrpc must be 2.0"}
	}
	if probe.Method == "" {
		return nil, &Error{Code: InvalidRequest, Message: "Invalid Request", Data: "method is required"}
	}

	req := &Request{
		JSONRPC: probe.JSONRPC,
		Method:  probe.Method,
		Params:  probe.Params,
	}
	if len(probe.ID) > 0 && string(probe.ID) != "null" {
		var id interface{}
		if err := json.Unmarshal(probe.ID, &id); err != nil {
			return nil, &Error{Code: InvalidRequest, Message: "Invalid Request", Data: "id is not valid JSON"}
		}
		req.ID = id
	}
	return req, nil
}

// errorBody maps a ledger error onto a JSON-RPC error object. The
// structured error travels in Data so clients keep code, task id, and
// signer context.
func errorBody(err error) *Error {
	code := InternalError
	switch errors.Code(err) {
	case errors.ErrCodeValidation:
		code = InvalidParams
	case errors.ErrCodeUnknownMethod:
		code = MethodNotFound
	case errors.ErrCodeNotFound:
		code = CodeNotFound
	case errors.ErrCodeInvalidState:
		code = CodeInvalidState
	case errors.ErrCodeUnauthorized:
		code = CodeUnauthorized
	case errors.ErrCodeTimeout:
		code = CodeTimeout
	case errors.ErrCodeUnavailable:
		code = CodeUnavailable
	}

	body := &Error{Code: code, Message: err.Error()}
	if lerr := errors.AsLedgerError(err); lerr != nil {
		body.Data = lerr
	}
	return body
}
