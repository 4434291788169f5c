// Package command runs typed commands such as "connect" or
// `print --compose text:"Hi" walk:2` against the gateway. The dashboard's
// console and the CLI use it.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thereceipt/thermal-bridge/internal/gateway"
	"github.com/thereceipt/thermal-bridge/internal/printer"
	"github.com/thereceipt/thermal-bridge/internal/sdk"
)

// Executor executes commands
type Executor struct {
	gateway *gateway.Gateway
	queue   *printer.PrintQueue
	timeout time.Duration
	detect  func() ([]sdk.Device, error)
}

// NewExecutor creates a new command executor. timeout bounds the wait for
// a gateway reply.
func NewExecutor(gw *gateway.Gateway, queue *printer.PrintQueue, timeout time.Duration) *Executor {
	return &Executor{
		gateway: gw,
		queue:   queue,
		timeout: timeout,
		detect:  sdk.DetectDevices,
	}
}

// Result represents the result of executing a command
type Result struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Execute executes a command string and returns a result
func (e *Executor) Execute(cmdStr string) *Result {
	parts := parseCommand(cmdStr)
	if len(parts) == 0 {
		return &Result{
			Success: false,
			Error:   "empty command",
		}
	}

	command := parts[0]
	args := parts[1:]

	switch command {
	case "connect":
		return e.call(command, gateway.Call{Method: gateway.MethodConnect})
	case "disconnect":
		return e.call(command, gateway.Call{Method: gateway.MethodDisconnect})
	case "status":
		return e.call(command, gateway.Call{Method: gateway.MethodCheckStatus})
	case "connected":
		return e.call(command, gateway.Call{Method: gateway.MethodIsConnected})
	case "print":
		return e.handlePrint(args)
	case "job":
		return e.handleJob(args)
	case "detect":
		return e.handleDetect(args)
	case "help":
		return e.handleHelp(args)
	default:
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("unknown command: %s. Type 'help' for available commands", command),
		}
	}
}

// call runs a gateway call and turns its first reply into a result labelled
// with the command the user typed
func (e *Executor) call(name string, call gateway.Call) *Result {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	reply, err := e.gateway.Do(ctx, call)
	if errors.Is(err, gateway.ErrNoReply) {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("%s: no reply within %s", name, e.timeout),
		}
	}

	return FromReply(name, reply)
}

// FromReply converts a gateway reply into a command result; name prefixes
// its message
func FromReply(name string, reply gateway.Reply) *Result {
	switch reply.Event {
	case gateway.EventSuccess:
		return &Result{
			Success: true,
			Message: fmt.Sprintf("%s: %v", name, reply.Value),
			Data:    map[string]interface{}{"value": reply.Value},
		}
	case gateway.EventNotImplemented:
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("%s: not implemented", name),
		}
	default:
		res := &Result{
			Success: false,
			Error:   fmt.Sprintf("%s: %s (%s)", name, reply.Message, reply.Code),
			Data:    map[string]interface{}{"code": reply.Code},
		}
		if reply.Details != nil {
			res.Data["details"] = reply.Details
		}
		return res
	}
}

// parseCommand parses a command string into parts, handling quoted strings
func parseCommand(cmdStr string) []string {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		return []string{}
	}

	var parts []string
	var current strings.Builder
	inQuotes := false
	quoteChar := byte(0)

	for i := 0; i < len(cmdStr); i++ {
		char := cmdStr[i]

		if char == '"' || char == '\'' {
			if !inQuotes {
				inQuotes = true
				quoteChar = char
			} else if char == quoteChar {
				inQuotes = false
				quoteChar = 0
			} else {
				current.WriteByte(char)
			}
		} else if char == ' ' && !inQuotes {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		} else {
			current.WriteByte(char)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}
