// Package tui is the terminal dashboard of the bridge. It shows the printer
// and battery state, the print queue and the live log, and runs typed
// commands from its console.
package tui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/thereceipt/thermal-bridge/internal/battery"
	"github.com/thereceipt/thermal-bridge/internal/command"
	"github.com/thereceipt/thermal-bridge/internal/gateway"
	"github.com/thereceipt/thermal-bridge/internal/printer"
)

const maxLogLines = 500

// Options wires a Dashboard
type Options struct {
	Gateway *gateway.Gateway
	Queue   *printer.PrintQueue
	Battery battery.Source
	// Address is shown in the status panel
	Address         string
	Driver          string
	ResponseTimeout time.Duration
}

// Dashboard is the tview application
type Dashboard struct {
	App      *tview.Application
	gateway  *gateway.Gateway
	queue    *printer.PrintQueue
	executor *command.Executor
	address  string
	driver   string

	// Main layout
	flex *tview.Flex

	// Panels
	statusBox    *tview.TextView
	jobsTable    *tview.Table
	jobDetails   *tview.TextView
	logsArea     *tview.TextView
	commandInput *tview.InputField

	mu          sync.Mutex
	lastBattery *battery.Event

	startTime   time.Time
	unsubscribe func()
	done        chan struct{}
}

// NewDashboard creates the dashboard. It does not touch the terminal until
// Run is called.
func NewDashboard(opts Options) *Dashboard {
	d := &Dashboard{
		App:       tview.NewApplication(),
		gateway:   opts.Gateway,
		queue:     opts.Queue,
		executor:  command.NewExecutor(opts.Gateway, opts.Queue, opts.ResponseTimeout),
		address:   opts.Address,
		driver:    opts.Driver,
		startTime: time.Now(),
		done:      make(chan struct{}),
	}

	d.setupUI()

	if opts.Battery != nil {
		d.unsubscribe = opts.Battery.Subscribe(d.onBattery)
	}
	return d
}

func (d *Dashboard) setupUI() {
	d.statusBox = tview.NewTextView()
	d.statusBox.SetBorder(true)
	d.statusBox.SetTitle("Bridge")
	d.statusBox.SetDynamicColors(true)

	d.jobsTable = tview.NewTable()
	d.jobsTable.SetBorder(true)
	d.jobsTable.SetTitle("Print Queue")
	d.jobsTable.SetSelectable(true, false)
	d.jobsTable.SetFixed(1, 0)
	d.jobsTable.SetSelectionChangedFunc(func(row, column int) {
		d.showJob(row)
	})

	d.jobDetails = tview.NewTextView()
	d.jobDetails.SetBorder(true)
	d.jobDetails.SetTitle("Job")
	d.jobDetails.SetDynamicColors(true)

	d.logsArea = tview.NewTextView()
	d.logsArea.SetBorder(true)
	d.logsArea.SetTitle("Log")
	d.logsArea.SetDynamicColors(true)
	d.logsArea.SetScrollable(true)
	d.logsArea.SetMaxLines(maxLogLines)

	d.commandInput = tview.NewInputField().
		SetLabel("> ").
		SetFieldWidth(0).
		SetPlaceholder("Type a command (e.g., 'help')").
		SetDoneFunc(func(key tcell.Key) {
			if key == tcell.KeyEnter {
				d.submit(d.commandInput.GetText())
				d.commandInput.SetText("")
			}
		})

	topRow := tview.NewFlex().
		AddItem(d.statusBox, 0, 1, false).
		AddItem(d.jobsTable, 0, 2, false).
		AddItem(d.jobDetails, 0, 1, false)

	bottom := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(d.logsArea, 0, 3, false).
		AddItem(d.commandInput, 1, 0, true)

	d.flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 1, false).
		AddItem(bottom, 0, 2, false)

	d.App.SetInputCapture(d.handleKey)
	d.App.SetRoot(d.flex, true)
}

func (d *Dashboard) handleKey(event *tcell.EventKey) *tcell.EventKey {
	// typing in the console must not trigger shortcuts
	if d.commandInput.HasFocus() {
		if event.Key() == tcell.KeyEsc {
			d.App.SetFocus(d.jobsTable)
			return nil
		}
		return event
	}

	switch event.Key() {
	case tcell.KeyCtrlC:
		d.App.Stop()
		return nil
	case tcell.KeyEsc:
		d.App.SetFocus(d.commandInput)
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case ':':
			d.App.SetFocus(d.commandInput)
			return nil
		case 'q':
			d.App.Stop()
			return nil
		case 'c':
			d.submit("job clear")
			return nil
		case 'r':
			d.refreshAll()
			return nil
		}
	}
	return event
}

// Run takes over the terminal until the user quits or Stop is called
func (d *Dashboard) Run() error {
	defer close(d.done)
	defer func() {
		if d.unsubscribe != nil {
			d.unsubscribe()
		}
	}()

	d.refreshAll()
	go d.refreshTicker()

	d.AddLog("thermal bridge dashboard, type 'help' for commands", "info")
	return d.App.Run()
}

// Stop leaves the dashboard
func (d *Dashboard) Stop() {
	d.App.Stop()
}

func (d *Dashboard) refreshTicker() {
	// also redraws the log pane
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.App.QueueUpdateDraw(d.refreshAll)
		}
	}
}

func (d *Dashboard) refreshAll() {
	d.statusBox.SetText(d.statusText())
	d.refreshJobs()
}

func (d *Dashboard) onBattery(ev battery.Event) {
	d.mu.Lock()
	d.lastBattery = &ev
	d.mu.Unlock()
}

func (d *Dashboard) statusText() string {
	uptime := time.Since(d.startTime)
	hours := int(uptime.Hours())
	minutes := int(uptime.Minutes()) % 60

	conn := "[red]disconnected[white]"
	if d.gateway.Connected() {
		conn = "[green]connected[white]"
	}
	if d.gateway.NoPaper() {
		conn += " [red](no paper)[white]"
	}

	power := "no reading"
	d.mu.Lock()
	if ev := d.lastBattery; ev != nil {
		power = fmt.Sprintf("%d%% %s", percent(*ev), ev.Status)
		if ev.Kind == battery.KindCapacity {
			power = fmt.Sprintf("capacity %d", ev.Level)
		}
	}
	d.mu.Unlock()
	if d.gateway.LowBattery() {
		power += " [yellow](low)[white]"
	}

	return fmt.Sprintf(`Printer: %s
Driver: %s
Battery: %s

Uptime: %dh %dm
API: %s
Jobs: %d total`, conn, d.driver, power, hours, minutes, d.address, len(d.queue.GetAllJobs()))
}

func percent(ev battery.Event) int {
	if ev.Scale <= 0 {
		return ev.Level
	}
	return ev.Level * 100 / ev.Scale
}

// submit runs a console command off the UI goroutine. Gateway calls can
// wait for the response timeout.
func (d *Dashboard) submit(cmd string) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return
	}

	d.AddLog(cmd, "command")

	switch cmd {
	case "quit", "exit":
		d.App.Stop()
		return
	case "clear":
		d.logsArea.Clear()
		return
	}

	go func() {
		result := d.executor.Execute(cmd)
		if result.Success {
			d.AddLog(formatResult(result), "info")
		} else {
			d.AddLog(result.Error, "error")
		}
		d.App.QueueUpdateDraw(d.refreshAll)
	}()
}

// formatResult renders a successful command result for the log pane
func formatResult(r *command.Result) string {
	var b strings.Builder
	b.WriteString(r.Message)

	keys := make([]string, 0, len(r.Data))
	for k := range r.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := r.Data[k].(type) {
		case []map[string]interface{}:
			for _, entry := range v {
				fmt.Fprintf(&b, "\n  %s", formatEntry(entry))
			}
		case map[string]interface{}:
			fmt.Fprintf(&b, "\n  %s", formatEntry(v))
		case nil:
		default:
			if k == "value" {
				continue
			}
			fmt.Fprintf(&b, "\n  %s: %v", k, v)
		}
	}
	return b.String()
}

func formatEntry(entry map[string]interface{}) string {
	keys := make([]string, 0, len(entry))
	for k := range entry {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, entry[k])
	}
	return strings.Join(parts, " ")
}

// AddLog appends a line to the log pane. Safe from any goroutine.
func (d *Dashboard) AddLog(message string, level string) {
	var color, prefix string

	switch level {
	case "error":
		color = "[red]"
	case "warning":
		color = "[yellow]"
	case "command":
		color = "[cyan]"
		prefix = "> "
	default:
		color = "[white]"
	}

	timeStr := time.Now().Format("15:04:05")
	fmt.Fprintf(d.logsArea, "%s%s %s%s[white]\n", color, timeStr, prefix, tview.Escape(message))
}

// LogWriter returns an io.Writer that feeds the log pane; pass it to
// logging.SetOutput
func (d *Dashboard) LogWriter() io.Writer {
	return &logWriter{view: d.logsArea}
}

type logWriter struct {
	view *tview.TextView
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	message := strings.TrimSpace(string(p))
	if message == "" {
		return len(p), nil
	}

	color := "[white]"
	switch {
	case strings.Contains(message, "level=ERROR"), strings.Contains(message, `"level":"ERROR"`):
		color = "[red]"
	case strings.Contains(message, "level=WARN"), strings.Contains(message, `"level":"WARN"`):
		color = "[yellow]"
	case strings.Contains(message, "level=DEBUG"), strings.Contains(message, `"level":"DEBUG"`):
		color = "[gray]"
	}

	if _, err := fmt.Fprintf(w.view, "%s%s[white]\n", color, tview.Escape(message)); err != nil {
		return 0, err
	}
	return len(p), nil
}
