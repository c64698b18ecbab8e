package grpc

import "errors"

var (
	ErrEndpointNotFound  = errors.New("endpoint not found")
	ErrConverterNotFound = errors.New("grpc converter not found")
	ErrUnexpectedType    = errors.New("unexpected message type")
)
