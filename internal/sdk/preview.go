package sdk

import (
	"image"
	"image/color"
	"log/slog"
	"strings"
	"sync"

	"github.com/fogleman/gg"
)

const lineDots = 24 // height of one fed line in dots

// font paths that already failed to load, so each is reported once
var badFonts sync.Map

// Preview draws what a thermal engine would put on paper. The canvas starts
// short and doubles as content is added.
type Preview struct {
	width    int
	height   int
	ctx      *gg.Context
	y        float64
	align    Align
	fontSize int
	fontPath string
	line     strings.Builder
}

// NewPreview creates a blank roll paperWidth dots wide (576 when zero)
func NewPreview(paperWidth int, fontPath string) *Preview {
	if paperWidth <= 0 {
		paperWidth = 576
	}

	initialHeight := 1000
	ctx := gg.NewContext(paperWidth, initialHeight)
	ctx.SetColor(color.White)
	ctx.Clear()
	ctx.SetColor(color.Black)

	return &Preview{
		width:    paperWidth,
		height:   initialHeight,
		ctx:      ctx,
		fontSize: 24,
		fontPath: fontPath,
	}
}

func (p *Preview) SetAlign(a Align) {
	p.align = a
}

func (p *Preview) SetFontSize(size int) {
	p.fontSize = size
	p.loadFont(p.ctx)
}

// loadFont applies the configured face at the current size. On failure ctx
// keeps its previous face.
func (p *Preview) loadFont(ctx *gg.Context) {
	if p.fontPath == "" {
		return
	}
	err := ctx.LoadFontFace(p.fontPath, float64(p.fontSize))
	if err == nil {
		return
	}
	if _, seen := badFonts.LoadOrStore(p.fontPath, struct{}{}); !seen {
		slog.Warn("preview font unusable, using the built-in face", "font", p.fontPath, "error", err)
	}
}

func (p *Preview) AddString(text string) {
	p.line.WriteString(text)
}

// PrintString draws the buffered text, wrapped to the paper width
func (p *Preview) PrintString() {
	text := p.line.String()
	p.line.Reset()
	if text == "" {
		return
	}

	lines := p.ctx.WordWrap(text, float64(p.width))
	_, lineHeight := p.ctx.MeasureString("Hg")
	lineHeight *= 1.4

	p.ensureHeight(int(lineHeight)*len(lines) + lineDots)

	for _, line := range lines {
		x, ax := 0.0, 0.0
		switch p.align {
		case AlignMiddle:
			x, ax = float64(p.width)/2, 0.5
		case AlignRight:
			x, ax = float64(p.width), 1
		}
		p.ctx.DrawStringAnchored(line, x, p.y, ax, 1)
		p.y += lineHeight
	}
}

func (p *Preview) DrawImage(img image.Image) {
	h := img.Bounds().Dy()
	p.ensureHeight(h)

	x := 0
	switch p.align {
	case AlignMiddle:
		x = (p.width - img.Bounds().Dx()) / 2
	case AlignRight:
		x = p.width - img.Bounds().Dx()
	}
	p.ctx.DrawImage(img, x, int(p.y))
	p.y += float64(h)
}

func (p *Preview) Feed(lines int) {
	p.ensureHeight(lines * lineDots)
	p.y += float64(lines * lineDots)
}

// Empty reports whether nothing has been printed or fed
func (p *Preview) Empty() bool {
	return p.y == 0
}

// Image returns the roll cropped to the printed length
func (p *Preview) Image() image.Image {
	finalHeight := int(p.y) + lineDots
	if finalHeight > p.height {
		finalHeight = p.height
	}

	img := p.ctx.Image()
	return img.(interface {
		SubImage(r image.Rectangle) image.Image
	}).SubImage(image.Rect(0, 0, p.width, finalHeight))
}

func (p *Preview) SavePNG(path string) error {
	return gg.SavePNG(path, p.Image())
}

func (p *Preview) ensureHeight(needed int) {
	if int(p.y)+needed <= p.height {
		return
	}

	newHeight := p.height * 2
	if newHeight < int(p.y)+needed {
		newHeight = int(p.y) + needed + 1000
	}

	newCtx := gg.NewContext(p.width, newHeight)
	newCtx.SetColor(color.White)
	newCtx.Clear()
	newCtx.DrawImage(p.ctx.Image(), 0, 0)
	newCtx.SetColor(color.Black)
	p.loadFont(newCtx)

	p.ctx = newCtx
	p.height = newHeight
}
