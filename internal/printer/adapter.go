// Package printer is the only code that talks to the thermal printer. It
// connects, checks status and runs print jobs on a single-worker queue, and
// turns SDK failures into the error codes applications see.
package printer

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/thereceipt/thermal-bridge/internal/printjob"
	"github.com/thereceipt/thermal-bridge/internal/sdk"
)

// Config holds the settings applied at the start of every job
type Config struct {
	LeftIndent int
	LineSpace  int
	Gray       int
	PaperWidth int
}

// DefaultConfig returns the stock job defaults
func DefaultConfig() Config {
	return Config{
		LeftIndent: 0,
		LineSpace:  0,
		Gray:       5,
		PaperWidth: 384,
	}
}

// Adapter drives one printer through the SDK boundary
type Adapter struct {
	printer sdk.ThermalPrinter
	cfg     Config
	queue   *PrintQueue

	// hw serializes SDK access between the worker and direct calls
	hw sync.Mutex
	// session is set while a Connect is not yet followed by Disconnect.
	// Guarded by hw.
	session bool

	mu      sync.Mutex
	noPaper bool

	// OnUnclassified is called with print failures that carry no known kind
	OnUnclassified func(error)
}

// NewAdapter creates an adapter and starts its print worker
func NewAdapter(p sdk.ThermalPrinter, cfg Config) *Adapter {
	a := &Adapter{
		printer: p,
		cfg:     cfg,
	}
	a.queue = NewPrintQueue(a.runJob)
	return a
}

// Queue returns the adapter's print queue
func (a *Adapter) Queue() *PrintQueue {
	return a.queue
}

// Close stops the print worker
func (a *Adapter) Close() {
	a.queue.Stop()
}

// Connect opens the printer session
func (a *Adapter) Connect() error {
	a.hw.Lock()
	defer a.hw.Unlock()

	if err := a.printer.Start(); err != nil {
		return fmt.Errorf("failed to start printer: %w", err)
	}
	if err := a.printer.Reset(); err != nil {
		return fmt.Errorf("failed to reset printer: %w", err)
	}
	a.session = true
	return nil
}

// Disconnect closes the printer session
func (a *Adapter) Disconnect() error {
	a.hw.Lock()
	defer a.hw.Unlock()

	a.session = false
	if err := a.printer.Reset(); err != nil {
		return fmt.Errorf("failed to reset printer: %w", err)
	}
	if err := a.printer.Stop(); err != nil {
		return fmt.Errorf("failed to stop printer: %w", err)
	}
	return nil
}

// CheckStatus asks the printer for its status. A healthy printer on a low
// battery is reported as ErrLowBattery instead of StatusOK.
func (a *Adapter) CheckStatus(lowBattery bool) (Status, error) {
	a.hw.Lock()
	code, err := a.printer.CheckStatus()
	a.hw.Unlock()

	if err != nil {
		return StatusUnknown, err
	}

	status := StatusFromCode(code)
	if status == StatusOK && lowBattery {
		return status, ErrLowBattery
	}
	return status, nil
}

// NoPaper reports whether the last job ran out of paper
func (a *Adapter) NoPaper() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.noPaper
}

// Print submits items as one job. It fails without touching the printer on
// a low battery, or once after a job ran out of paper. Otherwise the returned
// channel carries the job's reports and is closed when the job is done.
func (a *Adapter) Print(items []printjob.Item, lowBattery bool) (*PrintJob, <-chan Report, error) {
	if lowBattery {
		return nil, nil, ErrLowBattery
	}

	a.mu.Lock()
	if a.noPaper {
		a.noPaper = false
		a.mu.Unlock()
		return nil, nil, ErrNoPaper
	}
	a.mu.Unlock()

	job, reports := a.queue.Enqueue(items)
	return job, reports, nil
}

func (a *Adapter) runJob(job *PrintJob, report func(Report)) error {
	a.hw.Lock()
	defer a.hw.Unlock()

	reported := false
	emit := func(item int, err error) {
		reported = true
		report(Report{Item: item, Err: err})
	}

	var failure error
	outOfPaper := false

	if err := a.printItems(job.Items, emit); err != nil {
		switch sdk.KindOf(err) {
		case sdk.KindNoPaper:
			a.mu.Lock()
			a.noPaper = true
			a.mu.Unlock()
			outOfPaper = true
		case sdk.KindOverHeat:
			failure = ErrOverHeat.wrap(err)
		case sdk.KindDeviceTransmitData:
			failure = ErrDeviceTransmitData.wrap(err)
		default:
			failure = ErrPrint.wrap(err)
			if a.OnUnclassified != nil {
				a.OnUnclassified(err)
			}
		}
		if failure != nil {
			emit(-1, failure)
		}
	}

	slog.Debug("cancel prompt", "job", job.ID)
	if outOfPaper {
		// the session stays open so the next print can fail fast
		failure = ErrNoPaper
		emit(-1, ErrNoPaper)
	} else {
		if err := a.printer.Stop(); err != nil {
			slog.Warn("failed to stop printer", "job", job.ID, "error", err)
		}
		a.restoreSession(job.ID)
	}

	if !reported {
		emit(-1, nil)
	}
	return failure
}

// restoreSession re-opens the session a job closed when the printer was
// connected before it ran. Caller holds hw.
func (a *Adapter) restoreSession(jobID string) {
	if !a.session {
		return
	}
	if err := do(a.printer.Start, a.printer.Reset); err != nil {
		slog.Warn("failed to reopen printer session", "job", jobID, "error", err)
	}
}

func (a *Adapter) printItems(items []printjob.Item, emit func(int, error)) error {
	err := do(
		a.printer.Start,
		a.printer.Reset,
		func() error { return a.printer.SetAlign(sdk.AlignLeft) },
		func() error { return a.printer.SetLeftIndent(a.cfg.LeftIndent) },
		func() error { return a.printer.SetLineSpace(a.cfg.LineSpace) },
		func() error { return a.printer.SetGray(a.cfg.Gray) },
	)
	if err != nil {
		return err
	}

	for i, item := range items {
		switch item.Type {
		case printjob.TypeText:
			err := do(
				func() error { return a.printer.SetFontSize(printjob.FontSize(item.FontSize)) },
				func() error { return a.printer.SetAlign(printjob.Alignment(item.Alignment)) },
				func() error { return a.printer.AddString(item.Text()) },
				a.printer.PrintString,
			)
			if err != nil {
				return err
			}
			emit(i, nil)

		case printjob.TypeByte:
			images, err := item.Images(a.cfg.PaperWidth)
			if err != nil {
				return sdk.NewError(sdk.KindUnclassified, "decode image", err)
			}
			for _, img := range images {
				if err := a.printer.PrintLogo(img); err != nil {
					return err
				}
			}
			if err := a.printer.PrintString(); err != nil {
				return err
			}
			emit(i, nil)

		case printjob.TypeQR:
			img, err := item.QRCode(a.cfg.PaperWidth)
			if err != nil {
				return sdk.NewError(sdk.KindUnclassified, "encode qr code", err)
			}
			if err := a.printer.PrintLogo(img); err != nil {
				return err
			}

		case printjob.TypePDF:
			slog.Debug("skipping pdf item", "item", i)

		case printjob.TypeWalkPaper:
			if err := a.printer.WalkPaper(item.Steps()); err != nil {
				return err
			}
		}
	}

	return nil
}

// do runs steps in order and stops at the first error
func do(steps ...func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
