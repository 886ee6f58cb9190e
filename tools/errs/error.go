package errs

import (
	"errors"
	"fmt"
	"strings"

	"LiveGateway/tools/errs/stack"
)

type Error interface {
	Is(err error) bool
	Wrap() error
	WrapMsg(msg string, kv ...any) error
	error
}

func New(s string, kv ...any) Error {
	return &errorString{s: toString(s, kv)}
}

type errorString struct {
	s string
}

func (e *errorString) Is(err error) bool {
	if err == nil {
		return false
	}
	var t *errorString
	if !errors.As(err, &t) {
		return false
	}
	return e.s == t.s
}

func (e *errorString) Error() string { return e.s }

func (e *errorString) Wrap() error { return stack.New(e, stackSkip) }

func (e *errorString) WrapMsg(msg string, kv ...any) error {
	return stack.New(NewErrorWrapper(e, toString(msg, kv)), stackSkip)
}

// NewErrorWrapper attaches a message to an existing error without losing it.
func NewErrorWrapper(err error, msg string) error {
	return &errorWrapper{err: err, msg: msg}
}

type errorWrapper struct {
	err error
	msg string
}

func (e *errorWrapper) Error() string {
	if e.msg == "" {
		return e.err.Error()
	}
	return e.msg + ": " + e.err.Error()
}

func (e *errorWrapper) Unwrap() error { return e.err }

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if i+1 < len(kv) {
			sb.WriteString(fmt.Sprintf(" %v=%v", kv[i], kv[i+1]))
		} else {
			sb.WriteString(fmt.Sprintf(" %v", kv[i]))
		}
	}
	return sb.String()
}

