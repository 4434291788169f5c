package sdk

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/hennedo/escpos"
)

var errNotStarted = errors.New("printer not started")

// ESCPOSPrinter drives a generic ESC/POS thermal printer through
// hennedo/escpos. Margins, rasters and status requests come from Encoder and
// go out through the same buffered writer.
type ESCPOSPrinter struct {
	dial func() (Connection, error)

	conn Connection
	pos  *escpos.Escpos

	align    Align
	fontSize int
	gray     int
	line     strings.Builder

	// set once a paper check gets no reply; cleared on Start
	statusless bool
}

// NewESCPOSPrinter creates a printer that connects over t on Start
func NewESCPOSPrinter(t Transport) *ESCPOSPrinter {
	return newESCPOSPrinter(t.Dial)
}

func newESCPOSPrinter(dial func() (Connection, error)) *ESCPOSPrinter {
	return &ESCPOSPrinter{
		dial:     dial,
		fontSize: 24,
		gray:     5,
	}
}

func (p *ESCPOSPrinter) Start() error {
	if p.conn != nil {
		return nil
	}

	conn, err := p.dial()
	if err != nil {
		return NewError(KindDeviceTransmitData, "start", err)
	}

	p.conn = conn
	p.pos = escpos.New(conn)
	p.statusless = false
	return nil
}

// Reset clears local state and, when a session is open, re-initializes the
// printer. A stopped printer has nothing to reset.
func (p *ESCPOSPrinter) Reset() error {
	p.align = AlignLeft
	p.line.Reset()
	if p.conn == nil {
		return nil
	}
	if _, err := p.pos.Initialize(); err != nil {
		return NewError(KindDeviceTransmitData, "reset", err)
	}
	return p.flush("reset")
}

func (p *ESCPOSPrinter) Stop() error {
	if p.conn == nil {
		return nil
	}

	err := p.conn.Close()
	p.conn = nil
	p.pos = nil
	if err != nil {
		return NewError(KindDeviceTransmitData, "stop", err)
	}
	return nil
}

// CheckStatus asks the paper sensor first, then the error status byte
func (p *ESCPOSPrinter) CheckStatus() (int, error) {
	paper, err := p.query(statusPaperRoll)
	if err != nil {
		return StatusUnknown, err
	}
	if paper&0x60 != 0 {
		return StatusNoPaper, nil
	}

	errs, err := p.query(statusError)
	if err != nil {
		return StatusUnknown, err
	}
	switch {
	case errs&0x40 != 0:
		// auto-recoverable errors are head temperature on thermal engines
		return StatusOverHeat, nil
	case errs&0x28 != 0:
		return StatusUnknown, nil
	}

	return StatusOK, nil
}

func (p *ESCPOSPrinter) SetAlign(align Align) error {
	p.align = align
	return nil
}

func (p *ESCPOSPrinter) SetLeftIndent(indent int) error {
	return p.send("set left indent", NewEncoder().SetLeftMargin(indent))
}

// SetLineSpace sets the line spacing in motion units; zero restores the
// printer default
func (p *ESCPOSPrinter) SetLineSpace(space int) error {
	if p.pos == nil {
		return NewError(KindDeviceTransmitData, "set line space", errNotStarted)
	}

	var err error
	if space <= 0 {
		_, err = p.pos.DefaultLineSpacing()
	} else {
		_, err = p.pos.LineSpacing(clampByte(space))
	}
	if err != nil {
		return NewError(KindDeviceTransmitData, "set line space", err)
	}
	return p.flush("set line space")
}

func (p *ESCPOSPrinter) SetGray(level int) error {
	p.gray = level
	return nil
}

func (p *ESCPOSPrinter) SetFontSize(size int) error {
	p.fontSize = size
	return nil
}

func (p *ESCPOSPrinter) AddString(text string) error {
	if p.conn == nil {
		return NewError(KindDeviceTransmitData, "add string", errNotStarted)
	}
	p.line.WriteString(text)
	return nil
}

func (p *ESCPOSPrinter) PrintString() error {
	if p.conn == nil {
		return NewError(KindDeviceTransmitData, "print string", errNotStarted)
	}
	if err := p.checkPaper("print string"); err != nil {
		return err
	}

	text := p.line.String()
	p.line.Reset()
	if text == "" {
		return nil
	}

	mult := fontMultiplier(p.fontSize)
	p.pos.Justify(justify(p.align)).Size(mult, mult)
	if _, err := p.pos.Write(text); err != nil {
		return NewError(KindDeviceTransmitData, "print string", err)
	}
	if _, err := p.pos.LineFeed(); err != nil {
		return NewError(KindDeviceTransmitData, "print string", err)
	}
	return p.flush("print string")
}

func (p *ESCPOSPrinter) PrintLogo(img image.Image) error {
	if img == nil {
		return NewError(KindUnclassified, "print logo", errors.New("nil image"))
	}
	if p.conn == nil {
		return NewError(KindDeviceTransmitData, "print logo", errNotStarted)
	}
	if err := p.checkPaper("print logo"); err != nil {
		return err
	}

	enc := NewEncoder().SetAlignment(p.align).RasterImage(img, grayThreshold(p.gray))
	return p.send("print logo", enc)
}

func (p *ESCPOSPrinter) WalkPaper(steps int) error {
	if p.pos == nil {
		return NewError(KindDeviceTransmitData, "walk paper", errNotStarted)
	}
	if _, err := p.pos.LineFeedD(clampByte(steps)); err != nil {
		return NewError(KindDeviceTransmitData, "walk paper", err)
	}
	return p.flush("walk paper")
}

// send writes raw commands and flushes them to the printer
func (p *ESCPOSPrinter) send(op string, enc *Encoder) error {
	if p.pos == nil {
		return NewError(KindDeviceTransmitData, op, errNotStarted)
	}
	if _, err := p.pos.WriteRaw(enc.Bytes()); err != nil {
		return NewError(KindDeviceTransmitData, op, err)
	}
	return p.flush(op)
}

func (p *ESCPOSPrinter) flush(op string) error {
	if err := p.pos.Print(); err != nil {
		return NewError(KindDeviceTransmitData, op, err)
	}
	return nil
}

// query sends a real-time status request and returns the reply byte
func (p *ESCPOSPrinter) query(n byte) (byte, error) {
	op := fmt.Sprintf("status %d", n)
	if err := p.send(op, NewEncoder().StatusRequest(n)); err != nil {
		return 0, err
	}

	buf := make([]byte, 1)
	read, err := p.conn.Read(buf)
	if err != nil {
		return 0, NewError(KindDeviceTransmitData, op, err)
	}
	// every status byte has bit 1 and bit 4 set, bits 0 and 7 clear
	if read != 1 || buf[0]&0x93 != 0x12 {
		return 0, NewError(KindDeviceTransmitData, op, fmt.Errorf("malformed status reply %#x", buf[0]))
	}
	return buf[0], nil
}

// checkPaper fails with a no-paper error when the sensor reports paper end.
// Printers without a status channel are assumed to have paper.
func (p *ESCPOSPrinter) checkPaper(op string) error {
	if p.statusless {
		return nil
	}
	paper, err := p.query(statusPaperRoll)
	if err != nil {
		p.statusless = true
		return nil
	}
	if paper&0x60 != 0 {
		return NewError(KindNoPaper, op, errors.New("paper end sensor"))
	}
	return nil
}

// fontMultiplier maps a point size onto the 1-8 character magnification,
// taking 24pt as the printer's native font
func fontMultiplier(size int) uint8 {
	mult := (size + 12) / 24
	if mult < 1 {
		mult = 1
	}
	if mult > 8 {
		mult = 8
	}
	return uint8(mult)
}

func clampByte(n int) uint8 {
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return uint8(n)
}

func justify(a Align) uint8 {
	switch a {
	case AlignMiddle:
		return escpos.JustifyCenter
	case AlignRight:
		return escpos.JustifyRight
	default:
		return escpos.JustifyLeft
	}
}
