// Package a2a defines the JSON-RPC 2.0 wire protocol for the
// agent-to-agent endpoint: request/response envelopes, message and task
// shapes, and the closed error-code catalog the gateway guarantees to
// other systems.
package a2a

import "encoding/json"

const Version = "2.0"

// Request is an inbound JSON-RPC 2.0 envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an outbound JSON-RPC 2.0 envelope. Exactly one of Result
// and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object. Codes come from the fixed catalog
// below; they are a contract and must not be renumbered.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Standard JSON-RPC 2.0 codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// A2A task codes.
const (
	CodeTaskNotFound         = -32001
	CodeTaskNotCancelable    = -32002
	CodePushUnsupported      = -32003
	CodeUnsupportedOperation = -32004
)

// Admission-gate codes.
const (
	CodeAuthRequired         = -32010
	CodeRateLimitExceeded    = -32011
	CodePayloadTooLarge      = -32012
	CodeInjectionDetected    = -32013
	CodeDuplicateRequest     = -32014
	CodeTrustPolicyViolation = -32015
	CodeCriticalRegion       = -32050
)

var defaultMessages = map[int]string{
	CodeParseError:           "Parse error",
	CodeInvalidRequest:       "Invalid request",
	CodeMethodNotFound:       "Method not found",
	CodeInvalidParams:        "Invalid params",
	CodeInternalError:        "Internal error",
	CodeTaskNotFound:         "Task not found",
	CodeTaskNotCancelable:    "Task cannot be canceled",
	CodePushUnsupported:      "Push notifications are not supported",
	CodeUnsupportedOperation: "Unsupported operation",
	CodeAuthRequired:         "Authentication required",
	CodeRateLimitExceeded:    "Rate limit exceeded",
	CodePayloadTooLarge:      "Payload too large",
	CodeInjectionDetected:    "Potential injection detected",
	CodeDuplicateRequest:     "Duplicate request",
	CodeTrustPolicyViolation: "Trust policy violation",
	CodeCriticalRegion:       "Request origin blocked by regional trust policy",
}

// NewError builds an Error with the catalog's default message. An
// unknown code degrades to the generic internal error text rather than
// leaking detail.
func NewError(code int) *Error {
	msg, ok := defaultMessages[code]
	if !ok {
		return &Error{Code: CodeInternalError, Message: defaultMessages[CodeInternalError]}
	}
	return &Error{Code: code, Message: msg}
}

// NewErrorf builds an Error with a caller-supplied message.
func NewErrorf(code int, msg string) *Error {
	if msg == "" {
		return NewError(code)
	}
	return &Error{Code: code, Message: msg}
}

// OkResponse wraps a result in a success envelope.
func OkResponse(id json.RawMessage, result interface{}) Response {
	return Response{JSONRPC: Version, ID: id, Result: result}
}

// ErrResponse wraps an error in a failure envelope. Protocol failures
// still ride an HTTP 200; the envelope is the only failure signal.
func ErrResponse(id json.RawMessage, err *Error) Response {
	if err == nil {
		err = NewError(CodeInternalError)
	}
	return Response{JSONRPC: Version, ID: id, Error: err}
}
