// Package gateway routes named printer commands to the printer adapter and
// answers them through a Result. It owns the connected and low-battery flags.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/thereceipt/thermal-bridge/internal/battery"
	"github.com/thereceipt/thermal-bridge/internal/printer"
	"github.com/thereceipt/thermal-bridge/internal/printjob"
)

// Method names
const (
	MethodConnect     = "connect"
	MethodCheckStatus = "checkStatus"
	MethodIsConnected = "isConnected"
	MethodDisconnect  = "disconnect"
	MethodPrint       = "print"
)

// Error codes that do not come from the printer adapter
const (
	CodeCheckStatus = "CheckStatusException"
	CodeArgument    = "ArgumentException"
)

// Call is a named command with loosely typed arguments
type Call struct {
	Method string         `json:"method"`
	Args   map[string]any `json:"args,omitempty"`
}

// Result receives the replies to a call. A call may produce no reply, one
// reply or, for print, one reply per printed item.
type Result interface {
	Success(value any)
	Error(code, message string, details any)
	NotImplemented()
}

// Printer is the part of the printer adapter the gateway drives
type Printer interface {
	Connect() error
	Disconnect() error
	CheckStatus(lowBattery bool) (printer.Status, error)
	Print(items []printjob.Item, lowBattery bool) (*printer.PrintJob, <-chan printer.Report, error)
	NoPaper() bool
}

// Gateway handles calls for one printer
type Gateway struct {
	printer Printer
	battery battery.Source

	// mu serializes connect and disconnect
	mu          sync.Mutex
	connected   atomic.Bool
	lowBattery  atomic.Bool
	unsubscribe func()

	// OnError is called with failures worth reporting beyond the log
	OnError func(error)
}

// New creates a gateway. source may be nil when no battery events exist.
func New(p Printer, source battery.Source) *Gateway {
	if source == nil {
		source = battery.None{}
	}
	return &Gateway{
		printer: p,
		battery: source,
	}
}

// Connected reports the connection state
func (g *Gateway) Connected() bool {
	return g.connected.Load()
}

// LowBattery reports the last low-battery verdict
func (g *Gateway) LowBattery() bool {
	return g.lowBattery.Load()
}

// NoPaper reports whether the next print will fail fast after a job ran out
// of paper
func (g *Gateway) NoPaper() bool {
	return g.printer.NoPaper()
}

// Handle executes call and answers through res. Print reports keep arriving
// after Handle returns, until the job is done or ctx is cancelled.
func (g *Gateway) Handle(ctx context.Context, call Call, res Result) {
	switch call.Method {
	case MethodConnect:
		g.connect(res)
	case MethodCheckStatus:
		g.checkStatus(res)
	case MethodIsConnected:
		res.Success(g.connected.Load())
	case MethodDisconnect:
		g.disconnect(res)
	case MethodPrint:
		g.print(ctx, call.Args, res)
	default:
		res.NotImplemented()
	}
}

// Close releases the battery subscription. The printer session is left as is.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unsubscribe != nil {
		g.unsubscribe()
		g.unsubscribe = nil
	}
}

func (g *Gateway) connect(res Result) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// a repeated connect is not answered
	if g.connected.Load() {
		slog.Debug("connect ignored, already connected")
		return
	}

	if g.unsubscribe == nil {
		g.unsubscribe = g.battery.Subscribe(g.onBattery)
	}

	if err := g.printer.Connect(); err != nil {
		slog.Error("printer connect failed", "error", err)
		res.Success(false)
		return
	}

	g.connected.Store(true)
	slog.Info("printer connected")
	res.Success(true)
}

func (g *Gateway) disconnect(res Result) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.connected.Load() {
		slog.Debug("disconnect ignored, not connected")
		return
	}

	if g.unsubscribe != nil {
		g.unsubscribe()
		g.unsubscribe = nil
	}

	err := g.printer.Disconnect()
	if err != nil {
		slog.Error("printer disconnect failed", "error", err)
	}

	g.connected.Store(false)
	slog.Info("printer disconnected")
	res.Success(err == nil)
}

func (g *Gateway) checkStatus(res Result) {
	status, err := g.printer.CheckStatus(g.lowBattery.Load())
	if err != nil {
		var perr *printer.Error
		if errors.As(err, &perr) {
			res.Error(perr.Code, perr.Message, nil)
			return
		}

		slog.Error("status check failed", "error", err)
		g.reportError(err)
		res.Error(CodeCheckStatus, err.Error(), nil)
		return
	}

	res.Success(string(status))
}

func (g *Gateway) print(ctx context.Context, args map[string]any, res Result) {
	items, err := printjob.DecodeItems(args["data"])
	if err != nil {
		res.Error(CodeArgument, err.Error(), nil)
		return
	}

	job, reports, err := g.printer.Print(items, g.lowBattery.Load())
	if err != nil {
		replyError(res, err)
		return
	}

	slog.Debug("print job queued", "job", job.ID, "items", len(items))

	go func() {
		for r := range reports {
			if ctx.Err() != nil {
				continue
			}
			if r.Err != nil {
				replyError(res, r.Err)
			} else {
				res.Success(true)
			}
		}
	}()
}

func (g *Gateway) onBattery(ev battery.Event) {
	low, ok := ev.Low()
	if !ok {
		return
	}

	if g.lowBattery.Swap(low) != low {
		slog.Info("battery state changed", "low", low, "level", ev.Level, "kind", ev.Kind)
	}
}

func (g *Gateway) reportError(err error) {
	if g.OnError != nil {
		g.OnError(err)
	}
}

func replyError(res Result, err error) {
	var perr *printer.Error
	if errors.As(err, &perr) {
		var details any
		if d := perr.Details(); d != "" {
			details = d
		}
		res.Error(perr.Code, perr.Message, details)
		return
	}
	res.Error(printer.ErrPrint.Code, printer.ErrPrint.Message, err.Error())
}
