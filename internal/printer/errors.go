package printer

// Error is a printer failure as applications see it: a stable code plus a
// human readable message. Errors compare equal under errors.Is by code.
type Error struct {
	Code    string
	Message string
	Err     error
}

var (
	ErrNoPaper            = &Error{Code: "3", Message: "No paper, please put paper in and retry"}
	ErrLowBattery         = &Error{Code: "4", Message: "Low battery"}
	ErrPrint              = &Error{Code: "11", Message: "Print error"}
	ErrOverHeat           = &Error{Code: "12", Message: "Overheat error"}
	ErrDeviceTransmitData = &Error{Code: "13", Message: "Device Transmit Data Exception"}
)

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Details returns the underlying cause, or "" when there is none
func (e *Error) Details() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *Error) wrap(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err}
}
