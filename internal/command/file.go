package command

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/thereceipt/thermal-bridge/internal/printjob"
	"gopkg.in/yaml.v3"
)

// jobFile is the on-disk form of a print job. JSON files parse too.
//
//	items:
//	  - type: text
//	    data: Hello
//	    alignment: center
//	    fontSize: size34
//	  - type: byte
//	    image: logo.png
//	  - type: walkpaper
//	    data: 3
type jobFile struct {
	Items []struct {
		Type      string `yaml:"type"`
		Data      any    `yaml:"data"`
		Image     string `yaml:"image"`
		Alignment string `yaml:"alignment"`
		FontSize  string `yaml:"fontSize"`
	} `yaml:"items"`
}

// LoadItems reads a job file. Image paths are resolved relative to the file.
func LoadItems(path string) ([]printjob.Item, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}

	var file jobFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse job file: %w", err)
	}

	items := make([]printjob.Item, 0, len(file.Items))
	for n, entry := range file.Items {
		item := printjob.Item{
			Type:      printjob.ParseType(entry.Type),
			Data:      entry.Data,
			Alignment: entry.Alignment,
			FontSize:  entry.FontSize,
		}

		if entry.Image != "" {
			imagePath := entry.Image
			if !filepath.IsAbs(imagePath) {
				imagePath = filepath.Join(filepath.Dir(path), imagePath)
			}
			payload, err := readImage(imagePath)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", n, err)
			}
			item.Type = printjob.TypeByte
			item.Data = []any{payload}
		}

		items = append(items, item)
	}

	return items, nil
}
