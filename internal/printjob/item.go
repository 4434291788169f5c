package printjob

import (
	"fmt"
)

// Item is one unit of print content
type Item struct {
	Type      ItemType `json:"type" yaml:"type"`
	Data      any      `json:"data,omitempty" yaml:"data,omitempty"`
	Alignment string   `json:"alignment,omitempty" yaml:"alignment,omitempty"`
	FontSize  string   `json:"fontSize,omitempty" yaml:"fontSize,omitempty"`
}

// Text returns the item's data as a string
func (i Item) Text() string {
	if i.Data == nil {
		return ""
	}
	if s, ok := i.Data.(string); ok {
		return s
	}
	return fmt.Sprint(i.Data)
}

// Steps returns the walk-paper step count
func (i Item) Steps() int {
	return WalkSteps(i.Data)
}

// DecodeItems converts the loosely typed "data" argument of a print call
// into items. A missing argument is an empty job.
func DecodeItems(raw any) ([]Item, error) {
	if raw == nil {
		return []Item{}, nil
	}

	list, ok := raw.([]any)
	if !ok {
		if maps, ok := raw.([]map[string]any); ok {
			list = make([]any, len(maps))
			for i, m := range maps {
				list[i] = m
			}
		} else {
			return nil, fmt.Errorf("print data must be a list, got %T", raw)
		}
	}

	items := make([]Item, 0, len(list))
	for i, entry := range list {
		fields, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("print item %d must be a map, got %T", i, entry)
		}
		items = append(items, DecodeItem(fields))
	}

	return items, nil
}

// DecodeItem reads one item mapping. Labels are not validated; unknown
// values fall back to the translator defaults when the item is printed.
func DecodeItem(fields map[string]any) Item {
	return Item{
		Type:      ParseType(label(fields["type"])),
		Data:      fields["data"],
		Alignment: label(fields["alignment"]),
		FontSize:  label(fields["fontSize"]),
	}
}

func label(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Map returns the item in the loosely typed form DecodeItem reads
func (i Item) Map() map[string]any {
	fields := map[string]any{"type": i.Type.String()}
	if i.Data != nil {
		fields["data"] = i.Data
	}
	if i.Alignment != "" {
		fields["alignment"] = i.Alignment
	}
	if i.FontSize != "" {
		fields["fontSize"] = i.FontSize
	}
	return fields
}

// EncodeItems is the inverse of DecodeItems
func EncodeItems(items []Item) []any {
	list := make([]any, len(items))
	for n, item := range items {
		list[n] = item.Map()
	}
	return list
}
