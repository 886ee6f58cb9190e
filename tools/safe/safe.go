package safe

import (
	"fmt"
	"reflect"

	"LiveGateway/logger"
	"LiveGateway/tools/errs"
)

// MustNotNil panics if the given value is nil.
// Useful for enforcing required collaborators during construction.
func MustNotNil(v any, name string) {
	if v == nil {
		panic(fmt.Sprintf("%s must not be nil", name))
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && rv.IsNil() {
		panic(fmt.Sprintf("%s must not be nil", name))
	}
}

// SafeGo starts a new goroutine that recovers from panic,
// so that panics don't crash the entire program.
func SafeGo(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[SafeGo] %v", errs.ErrPanic(r))
			}
		}()
		f()
	}()
}

// Call runs f on the current goroutine and converts a panic into an error.
// Event handlers run behind this so that one malformed payload cannot take
// down the shared process.
func Call(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.ErrPanic(r)
		}
	}()
	return f()
}
