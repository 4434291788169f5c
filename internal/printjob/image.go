package printjob

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/skip2/go-qrcode"
)

// Images decodes every image payload of a byte item. Payloads may be base64
// strings, byte slices or lists of byte values (how JSON carries a byte
// array). Images wider than paperWidth are scaled down to fit.
func (i Item) Images(paperWidth int) ([]image.Image, error) {
	var payloads []any
	switch data := i.Data.(type) {
	case []any:
		payloads = data
	case [][]byte:
		for _, b := range data {
			payloads = append(payloads, b)
		}
	case nil:
		return nil, fmt.Errorf("byte item has no data")
	default:
		payloads = []any{data}
	}

	images := make([]image.Image, 0, len(payloads))
	for n, payload := range payloads {
		raw, err := payloadBytes(payload)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", n, err)
		}

		img, err := DecodeImage(raw, paperWidth)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", n, err)
		}
		images = append(images, img)
	}

	return images, nil
}

// DecodeImage decodes a PNG, JPEG or GIF and prepares it for a thermal
// head: grayscale, no wider than paperWidth (unbounded when zero).
func DecodeImage(raw []byte, paperWidth int) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if paperWidth > 0 && img.Bounds().Dx() > paperWidth {
		img = imaging.Resize(img, paperWidth, 0, imaging.Lanczos)
	}

	return imaging.Grayscale(img), nil
}

// QRCode renders the item's text as a square QR code sized to fit the
// paper with a margin, capped at 400 dots.
func (i Item) QRCode(paperWidth int) (image.Image, error) {
	text := i.Text()
	if text == "" {
		return nil, fmt.Errorf("qr item has no data")
	}

	qr, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}

	size := paperWidth - 100
	if size > 400 || size <= 0 {
		size = 400
	}

	return qr.Image(size), nil
}

func payloadBytes(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case string:
		data, err := base64.StdEncoding.DecodeString(p)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 payload: %w", err)
		}
		return data, nil
	case []any:
		data := make([]byte, len(p))
		for i, v := range p {
			b, ok := toByte(v)
			if !ok {
				return nil, fmt.Errorf("byte %d is not in 0-255: %v", i, v)
			}
			data[i] = b
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported image payload %T", payload)
	}
}

func toByte(v any) (byte, bool) {
	var n int
	switch x := v.(type) {
	case float64:
		n = int(x)
		if float64(n) != x {
			return 0, false
		}
	case int:
		n = x
	case int64:
		n = int(x)
	default:
		return 0, false
	}
	// signed bytes arrive from JVM and Dart clients
	if n < -128 || n > 255 {
		return 0, false
	}
	return byte(n), true
}
