package sdk

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures
type ErrorKind int

const (
	KindUnclassified ErrorKind = iota
	KindNoPaper
	KindOverHeat
	KindDeviceTransmitData
)

func (k ErrorKind) String() string {
	switch k {
	case KindNoPaper:
		return "no_paper"
	case KindOverHeat:
		return "over_heat"
	case KindDeviceTransmitData:
		return "device_transmit_data"
	default:
		return "unclassified"
	}
}

// Error is returned by ThermalPrinter implementations
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so sentinels like ErrNoPaper work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Kind == e.Kind
}

var (
	ErrNoPaper            = &Error{Kind: KindNoPaper}
	ErrOverHeat           = &Error{Kind: KindOverHeat}
	ErrDeviceTransmitData = &Error{Kind: KindDeviceTransmitData}
)

// NewError wraps err as an engine failure of the given kind
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain. Errors that
// did not come from the engine are unclassified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnclassified
}
