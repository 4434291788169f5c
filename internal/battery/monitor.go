package battery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Monitor polls the kernel's power_supply class and publishes a
// battery-changed event whenever the reading changes
type Monitor struct {
	*Broadcaster

	root     string
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewMonitor creates a monitor over root (normally /sys/class/power_supply)
func NewMonitor(root string, interval time.Duration) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &Monitor{
		Broadcaster: NewBroadcaster(),
		root:        root,
		interval:    interval,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins polling
func (m *Monitor) Start() {
	go func() {
		var previous *Event

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		previous = m.poll(previous)
		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				previous = m.poll(previous)
			}
		}
	}()
}

// Stop stops polling
func (m *Monitor) Stop() {
	m.cancel()
}

func (m *Monitor) poll(previous *Event) *Event {
	ev, err := ReadSysfs(m.root)
	if err != nil {
		slog.Debug("battery reading failed", "root", m.root, "error", err)
		return previous
	}

	if previous != nil && *previous == ev {
		return previous
	}

	slog.Debug("battery changed", "level", ev.Level, "scale", ev.Scale, "status", ev.Status)
	m.Publish(ev)
	return &ev
}

// ReadSysfs reads the first battery under root as a battery-changed event
func ReadSysfs(root string) (Event, error) {
	matches, err := filepath.Glob(filepath.Join(root, "BAT*"))
	if err != nil {
		return Event{}, err
	}
	if len(matches) == 0 {
		return Event{}, fmt.Errorf("no battery under %s", root)
	}
	dir := matches[0]

	capacity, err := os.ReadFile(filepath.Join(dir, "capacity"))
	if err != nil {
		return Event{}, fmt.Errorf("failed to read capacity: %w", err)
	}
	level, err := strconv.Atoi(strings.TrimSpace(string(capacity)))
	if err != nil {
		return Event{}, fmt.Errorf("invalid capacity %q: %w", capacity, err)
	}

	status := StatusUnknown
	if raw, err := os.ReadFile(filepath.Join(dir, "status")); err == nil {
		status = ParseStatus(strings.TrimSpace(string(raw)))
	}

	return Event{
		Kind:   KindChanged,
		Status: status,
		Level:  level,
		Scale:  100,
	}, nil
}
