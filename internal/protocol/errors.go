package protocol

import "fmt"

// ClientError is a CLIENT_ERROR reply (spec §6/§7). Per §7, the connection
// is closed after it is written — the parser has no way to resynchronize
// with a stream whose framing it couldn't follow.
type ClientError struct {
	Code int
	Msg  string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("CLIENT_ERROR %d %s", e.Code, e.Msg)
}

// ServerError is a SERVER_ERROR reply. Unlike ClientError, most of these
// (draining) leave the connection open.
type ServerError struct {
	Code int
	Msg  string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("SERVER_ERROR %d %s", e.Code, e.Msg)
}

func errBadFormat() *ClientError     { return &ClientError{Code: 0, Msg: "bad command line format"} }
func errUnknownCommand() *ClientError { return &ClientError{Code: 1, Msg: "unknown command"} }
func errExpectedCRLF() *ClientError {
	return &ClientError{Code: 2, Msg: "expected CR-LF after job body"}
}
func errJobTooBig() *ClientError { return &ClientError{Code: 3, Msg: "job too big"} }

// ErrOutOfMemory — SERVER_ERROR 0 out of memory.
func ErrOutOfMemory() *ServerError { return &ServerError{Code: 0, Msg: "out of memory"} }

// ErrInternal — SERVER_ERROR 1 internal error.
func ErrInternal() *ServerError { return &ServerError{Code: 1, Msg: "internal error"} }

// ErrDraining — SERVER_ERROR 2 draining.
func ErrDraining() *ServerError { return &ServerError{Code: 2, Msg: "draining"} }
