// Package battery delivers battery events and decides when the battery is
// too low to print.
package battery

import (
	"strings"
	"sync"
)

// Kind tells which broadcast an event came from
type Kind int

const (
	// KindChanged is the generic battery-changed broadcast: status, level, scale
	KindChanged Kind = iota
	// KindCapacity is the terminal vendor's capacity event: action, level
	KindCapacity
)

func (k Kind) String() string {
	if k == KindCapacity {
		return "capacity"
	}
	return "changed"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Status is the charger status of a battery-changed event
type Status int

const (
	StatusUnknown Status = iota + 1
	StatusCharging
	StatusDischarging
	StatusNotCharging
	StatusFull
)

var statusNames = map[Status]string{
	StatusUnknown:     "unknown",
	StatusCharging:    "charging",
	StatusDischarging: "discharging",
	StatusNotCharging: "not_charging",
	StatusFull:        "full",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseStatus reads a status name. Both the short names and the kernel's
// power_supply spellings ("Not charging") are accepted.
func ParseStatus(name string) Status {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	for status, n := range statusNames {
		if n == key {
			return status
		}
	}
	return StatusUnknown
}

// Event is one battery broadcast
type Event struct {
	Kind   Kind   `json:"kind"`
	Status Status `json:"status,omitempty"`
	Level  int    `json:"level"`
	Scale  int    `json:"scale,omitempty"`
	Action int    `json:"action,omitempty"`
}

// Low evaluates the event. ok is false when the event carries no verdict,
// which is the case for a battery-changed event while charging.
//
// The two broadcasts use different rules: battery-changed is low at or below
// a fifth of scale, the capacity event only when its action is 0 and the
// level has dropped below 1.
func (e Event) Low() (low bool, ok bool) {
	switch e.Kind {
	case KindCapacity:
		return e.Action == 0 && e.Level < 1, true
	default:
		if e.Status == StatusCharging {
			return false, false
		}
		return e.Level*5 <= e.Scale, true
	}
}

// Source delivers battery events to subscribers
type Source interface {
	// Subscribe registers fn and returns the function that unregisters it
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Broadcaster is a Source fed by Publish. The last battery-changed event is
// sticky: new subscribers receive it immediately.
type Broadcaster struct {
	mu     sync.Mutex
	next   int
	subs   map[int]func(Event)
	sticky *Event
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[int]func(Event)),
	}
}

func (b *Broadcaster) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	sticky := b.sticky
	b.mu.Unlock()

	if sticky != nil {
		fn(*sticky)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers ev to every subscriber
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	if ev.Kind == KindChanged {
		sticky := ev
		b.sticky = &sticky
	}
	subs := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// Subscribers returns the number of registered subscribers
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}

// None is a Source that never fires
type None struct{}

func (None) Subscribe(func(Event)) func() {
	return func() {}
}
