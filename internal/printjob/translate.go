// Package printjob decodes print items and translates their labels into
// engine constants.
package printjob

import (
	"fmt"
	"strconv"

	"github.com/thereceipt/thermal-bridge/internal/sdk"
)

// DefaultWalkSteps is used when a walkpaper item's data is not an integer
const DefaultWalkSteps = 2

// ItemType is the kind of a print item
type ItemType int

const (
	TypeByte ItemType = iota
	TypeText
	TypeQR
	TypePDF
	TypeWalkPaper
)

func (t ItemType) String() string {
	switch t {
	case TypeByte:
		return "byte"
	case TypeText:
		return "text"
	case TypeQR:
		return "qr"
	case TypePDF:
		return "pdf"
	default:
		return "walkpaper"
	}
}

// ParseType maps an item type label; unknown labels are walkpaper
func ParseType(label string) ItemType {
	switch label {
	case "byte":
		return TypeByte
	case "text":
		return TypeText
	case "qr":
		return TypeQR
	case "pdf":
		return TypePDF
	default:
		return TypeWalkPaper
	}
}

// Alignment maps an alignment label; unknown labels are left
func Alignment(label string) sdk.Align {
	switch label {
	case "center":
		return sdk.AlignMiddle
	case "right":
		return sdk.AlignRight
	default:
		return sdk.AlignLeft
	}
}

// FontSize maps a font size label to points; unknown labels are 18
func FontSize(label string) int {
	switch label {
	case "size24":
		return 24
	case "size34":
		return 34
	case "size44":
		return 44
	case "size54":
		return 54
	case "size64":
		return 64
	default:
		return 18
	}
}

// WalkSteps reads a step count from an item's data, falling back to
// DefaultWalkSteps
func WalkSteps(data any) int {
	if data == nil {
		return DefaultWalkSteps
	}

	steps, err := strconv.Atoi(fmt.Sprint(data))
	if err != nil {
		return DefaultWalkSteps
	}
	return steps
}

func (t ItemType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ItemType) UnmarshalText(text []byte) error {
	*t = ParseType(string(text))
	return nil
}
