package cacus

import (
	"fmt"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Kind classifies engine failures. Kinds form a small tree so callers can
// match a whole category with errors.Is, e.g. errors.Is(err, ErrResourceCreation)
// also matches a swap chain or pipeline failure.
type Kind int

const (
	ErrConfiguration Kind = iota + 1
	ErrDeviceSelection
	ErrNoSuitableDevice
	ErrResourceCreation
	ErrSwapChainCreation
	ErrPipelineCreation
	ErrNoSuitableMemoryType
	ErrSync
	ErrSubmit
	ErrPresent
)

var kindNames = map[Kind]string{
	ErrConfiguration:        "configuration error",
	ErrDeviceSelection:      "device selection error",
	ErrNoSuitableDevice:     "no suitable device",
	ErrResourceCreation:     "resource creation error",
	ErrSwapChainCreation:    "swap chain creation error",
	ErrPipelineCreation:     "pipeline creation error",
	ErrNoSuitableMemoryType: "no suitable memory type",
	ErrSync:                 "synchronization error",
	ErrSubmit:               "submit error",
	ErrPresent:              "present error",
}

func (k Kind) Error() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("cacus error kind %d", int(k))
}

func (k Kind) parent() Kind {
	switch k {
	case ErrNoSuitableDevice:
		return ErrDeviceSelection
	case ErrSwapChainCreation, ErrPipelineCreation, ErrNoSuitableMemoryType:
		return ErrResourceCreation
	}
	return 0
}

// Error is the concrete error returned by the engine. Result is vk.Success
// when the failure did not come from a driver call.
type Error struct {
	Kind   Kind
	Op     string
	Result vk.Result
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is this error's kind or one of its ancestors.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	if !ok {
		return false
	}
	for cur := e.Kind; cur != 0; cur = cur.parent() {
		if cur == k {
			return true
		}
	}
	return false
}

// newError wraps a failed driver result. It returns nil on vk.Success so
// call sites can be written as `if err := newError(...); err != nil`.
func newError(kind Kind, op string, ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	return errors.WithStack(&Error{Kind: kind, Op: op, Result: ret, Err: vk.Error(ret)})
}

func errorf(kind Kind, op string, format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: kind, Op: op, Err: errors.Errorf(format, args...)})
}

// wrapError attaches a kind and operation to an error from outside the driver.
func wrapError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&Error{Kind: kind, Op: op, Err: err})
}

// KindOf returns the kind carried by err, or 0 if err did not come from the engine.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
