package command

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/thereceipt/thermal-bridge/internal/printjob"
)

// Compose builds print items from command line arguments. Each item starts
// with its type (text:, image:, qr:, pdf:, walk or walk:<n>) and may be
// followed by properties (align:<left|center|right>, size:<size18..size64>).
//
//	text:"Hello" align:center size:size34 walk:3 image:logo.png
func Compose(args []string) ([]printjob.Item, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no compose arguments provided")
	}

	var items []printjob.Item
	var current *printjob.Item

	for _, arg := range args {
		if isItemStart(arg) {
			if current != nil {
				items = append(items, *current)
			}
			item, err := parseItemStart(arg)
			if err != nil {
				return nil, fmt.Errorf("failed to parse item '%s': %w", arg, err)
			}
			current = &item
		} else if current != nil {
			if err := parseItemProperty(current, arg); err != nil {
				return nil, fmt.Errorf("failed to parse property '%s': %w", arg, err)
			}
		} else {
			return nil, fmt.Errorf("unexpected argument '%s' (expected item start)", arg)
		}
	}

	if current != nil {
		items = append(items, *current)
	}

	return items, nil
}

var itemStarts = []string{"text:", "image:", "qr:", "pdf:", "walk:"}

func isItemStart(arg string) bool {
	if arg == "walk" {
		return true
	}
	for _, prefix := range itemStarts {
		if strings.HasPrefix(arg, prefix) {
			return true
		}
	}
	return false
}

func parseItemStart(arg string) (printjob.Item, error) {
	kind, value, _ := strings.Cut(arg, ":")
	value = strings.Trim(value, `"'`)

	switch kind {
	case "text":
		return printjob.Item{Type: printjob.TypeText, Data: value}, nil
	case "qr":
		return printjob.Item{Type: printjob.TypeQR, Data: value}, nil
	case "pdf":
		return printjob.Item{Type: printjob.TypePDF, Data: value}, nil
	case "walk":
		if value == "" {
			return printjob.Item{Type: printjob.TypeWalkPaper}, nil
		}
		return printjob.Item{Type: printjob.TypeWalkPaper, Data: value}, nil
	case "image":
		payload, err := readImage(value)
		if err != nil {
			return printjob.Item{}, err
		}
		return printjob.Item{Type: printjob.TypeByte, Data: []any{payload}}, nil
	default:
		return printjob.Item{}, fmt.Errorf("unknown item type %q", kind)
	}
}

func parseItemProperty(item *printjob.Item, arg string) error {
	name, value, ok := strings.Cut(arg, ":")
	if !ok {
		return fmt.Errorf("property must be in format 'name:value', got: %s", arg)
	}
	value = strings.Trim(value, `"'`)

	switch name {
	case "align", "alignment":
		item.Alignment = value
	case "size", "fontSize":
		if !strings.HasPrefix(value, "size") {
			value = "size" + value
		}
		item.FontSize = value
	default:
		return fmt.Errorf("unknown property %q", name)
	}
	return nil
}

// readImage loads an image file as the base64 payload of a byte item
func readImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
