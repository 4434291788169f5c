package gateway

// Reply events
const (
	EventSuccess        = "success"
	EventError          = "error"
	EventNotImplemented = "not_implemented"
)

// Reply is one answer to a call in a form that can travel as JSON
type Reply struct {
	Event   string `json:"event"`
	Value   any    `json:"value"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// ResultFunc adapts a function receiving replies to a Result
type ResultFunc func(Reply)

func (f ResultFunc) Success(value any) {
	f(Reply{Event: EventSuccess, Value: value})
}

func (f ResultFunc) Error(code, message string, details any) {
	f(Reply{Event: EventError, Code: code, Message: message, Details: details})
}

func (f ResultFunc) NotImplemented() {
	f(Reply{Event: EventNotImplemented})
}
