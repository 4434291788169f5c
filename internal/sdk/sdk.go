// Package sdk is the boundary to the thermal printer engine. Everything the
// bridge knows about the hardware goes through the ThermalPrinter interface.
package sdk

import "image"

// Align is the engine's alignment constant
type Align int

const (
	AlignLeft   Align = 0
	AlignMiddle Align = 1
	AlignRight  Align = 2
)

func (a Align) String() string {
	switch a {
	case AlignMiddle:
		return "center"
	case AlignRight:
		return "right"
	default:
		return "left"
	}
}

// Engine status codes returned by CheckStatus
const (
	StatusOK       = 0
	StatusOverHeat = 2  // print head is overheating
	StatusOverFlow = 3  // engine cache is full
	StatusUnknown  = 4
	StatusNoPaper  = 16
)

// ThermalPrinter is the set of engine primitives the bridge drives.
// Implementations are not required to be safe for concurrent use; the
// printer adapter serializes all calls.
type ThermalPrinter interface {
	Start() error
	Reset() error
	Stop() error
	CheckStatus() (int, error)

	SetAlign(align Align) error
	SetLeftIndent(indent int) error
	SetLineSpace(space int) error
	SetGray(level int) error
	SetFontSize(size int) error

	// AddString appends text to the line buffer; PrintString flushes the
	// buffer to the print head.
	AddString(text string) error
	PrintString() error
	PrintLogo(img image.Image) error
	WalkPaper(steps int) error
}
