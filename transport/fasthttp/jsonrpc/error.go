package jsonrpc

import "fmt"

// Error codes from http://www.jsonrpc.org/specification#error_object
const (
	ParseError     int = -32700
	InvalidRequest int = -32600
	MethodNotFound int = -32601
	InvalidParams  int = -32602
	InternalError  int = -32603
)

// Error defines a JSON RPC error.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e Error) Error() string {
	return fmt.Sprintf("jsonrpc %d: %s", e.Code, e.Message)
}

// ErrorCode implements ErrorCoder.
func (e Error) ErrorCode() int {
	return e.Code
}

// ErrorCoder is checked by DefaultErrorEncoder. If an error value implements
// ErrorCoder, its code is sent instead of InternalError.
type ErrorCoder interface {
	ErrorCode() int
}

func parseError(msg string) Error {
	return Error{Code: ParseError, Message: msg}
}

func invalidRequestError(msg string) Error {
	return Error{Code: InvalidRequest, Message: msg}
}

func methodNotFoundError(msg string) Error {
	return Error{Code: MethodNotFound, Message: msg}
}
