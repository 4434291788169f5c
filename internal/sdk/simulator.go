package sdk

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sync"
)

// Operation names recorded by Simulator
const (
	OpStart         = "start"
	OpReset         = "reset"
	OpStop          = "stop"
	OpCheckStatus   = "checkStatus"
	OpSetAlign      = "setAlign"
	OpSetLeftIndent = "setLeftIndent"
	OpSetLineSpace  = "setLineSpace"
	OpSetGray       = "setGray"
	OpSetFontSize   = "setFontSize"
	OpAddString     = "addString"
	OpPrintString   = "printString"
	OpPrintLogo     = "printLogo"
	OpWalkPaper     = "walkPaper"
)

// Call is one recorded engine call
type Call struct {
	Op  string
	Arg any
}

func (c Call) String() string {
	if c.Arg == nil {
		return c.Op
	}
	return fmt.Sprintf("%s(%v)", c.Op, c.Arg)
}

// Simulator is an in-memory ThermalPrinter. It records every call, can be
// told to fail a given call, and optionally renders the roll to PNG files.
type Simulator struct {
	mu       sync.Mutex
	calls    []Call
	counts   map[string]int
	failures map[string]map[int]error
	status   int
	started  bool

	preview    *Preview
	previewDir string
	fontPath   string
	width      int
	rolls      int
}

// NewSimulator creates a simulator reporting StatusOK
func NewSimulator() *Simulator {
	return &Simulator{
		counts:   make(map[string]int),
		failures: make(map[string]map[int]error),
		status:   StatusOK,
	}
}

// FailOn makes the nth call (1-based, counted since creation) of op return err
func (s *Simulator) FailOn(op string, nth int, err error) *Simulator {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures[op] == nil {
		s.failures[op] = make(map[int]error)
	}
	s.failures[op][nth] = err
	return s
}

// SetStatus sets the code CheckStatus reports
func (s *Simulator) SetStatus(code int) *Simulator {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = code
	return s
}

// EnablePreview renders each session (Start..Stop) into dir/roll-N.png.
// fontPath may be empty to use the built-in face.
func (s *Simulator) EnablePreview(dir string, paperWidth int, fontPath string) *Simulator {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.previewDir = dir
	s.width = paperWidth
	s.fontPath = fontPath
	return s
}

// Calls returns a copy of the recorded calls
func (s *Simulator) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	calls := make([]Call, len(s.calls))
	copy(calls, s.calls)
	return calls
}

// CallCount returns how many times op was called
func (s *Simulator) CallCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counts[op]
}

// ClearCalls forgets recorded calls; failure counters keep running
func (s *Simulator) ClearCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = nil
}

// Started reports whether a session is open
func (s *Simulator) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.started
}

func (s *Simulator) record(op string, arg any) error {
	s.calls = append(s.calls, Call{Op: op, Arg: arg})
	s.counts[op]++

	if err, ok := s.failures[op][s.counts[op]]; ok {
		return err
	}
	return nil
}

func (s *Simulator) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(OpStart, nil); err != nil {
		return err
	}
	s.started = true
	if s.previewDir != "" {
		s.preview = NewPreview(s.width, s.fontPath)
	}
	return nil
}

func (s *Simulator) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(OpReset, nil); err != nil {
		return err
	}
	if s.preview != nil {
		s.preview.SetAlign(AlignLeft)
	}
	return nil
}

func (s *Simulator) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(OpStop, nil); err != nil {
		return err
	}
	s.started = false

	if s.preview != nil && !s.preview.Empty() {
		s.rolls++
		path := filepath.Join(s.previewDir, fmt.Sprintf("roll-%d.png", s.rolls))
		if err := s.preview.SavePNG(path); err != nil {
			s.preview = nil
			return fmt.Errorf("failed to save preview: %w", err)
		}
	}
	s.preview = nil
	return nil
}

func (s *Simulator) CheckStatus() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(OpCheckStatus, nil); err != nil {
		return StatusUnknown, err
	}
	return s.status, nil
}

func (s *Simulator) SetAlign(align Align) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(OpSetAlign, align); err != nil {
		return err
	}
	if s.preview != nil {
		s.preview.SetAlign(align)
	}
	return nil
}

func (s *Simulator) SetLeftIndent(indent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.record(OpSetLeftIndent, indent)
}

func (s *Simulator) SetLineSpace(space int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.record(OpSetLineSpace, space)
}

func (s *Simulator) SetGray(level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.record(OpSetGray, level)
}

func (s *Simulator) SetFontSize(size int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(OpSetFontSize, size); err != nil {
		return err
	}
	if s.preview != nil {
		s.preview.SetFontSize(size)
	}
	return nil
}

func (s *Simulator) AddString(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(OpAddString, text); err != nil {
		return err
	}
	if s.preview != nil {
		s.preview.AddString(text)
	}
	return nil
}

func (s *Simulator) PrintString() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(OpPrintString, nil); err != nil {
		return err
	}
	if s.preview != nil {
		s.preview.PrintString()
	}
	return nil
}

func (s *Simulator) PrintLogo(img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(OpPrintLogo, nil); err != nil {
		return err
	}
	if img == nil {
		return NewError(KindUnclassified, OpPrintLogo, errors.New("nil image"))
	}
	if s.preview != nil {
		s.preview.DrawImage(img)
	}
	return nil
}

func (s *Simulator) WalkPaper(steps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(OpWalkPaper, steps); err != nil {
		return err
	}
	if s.preview != nil {
		s.preview.Feed(steps)
	}
	return nil
}
