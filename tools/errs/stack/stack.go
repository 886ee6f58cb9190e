package stack

import (
	"fmt"
	"runtime"
	"strings"
)

const maxFrames = 16

type stackError struct {
	err    error
	frames []uintptr
}

// New wraps err with the call stack of the caller, skipping `skip` frames.
func New(err error, skip int) error {
	if err == nil {
		return nil
	}
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(skip, pcs)
	return &stackError{err: err, frames: pcs[:n]}
}

func (e *stackError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.err.Error())
	frames := runtime.CallersFrames(e.frames)
	for {
		f, more := frames.Next()
		sb.WriteString(fmt.Sprintf(" -> %s:%d", trimPath(f.File), f.Line))
		if !more {
			break
		}
	}
	return sb.String()
}

func (e *stackError) Unwrap() error { return e.err }

func trimPath(file string) string {
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		if j := strings.LastIndexByte(file[:i], '/'); j >= 0 {
			return file[j+1:]
		}
	}
	return file
}
