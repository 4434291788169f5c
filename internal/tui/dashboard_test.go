package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereceipt/thermal-bridge/internal/battery"
	"github.com/thereceipt/thermal-bridge/internal/command"
	"github.com/thereceipt/thermal-bridge/internal/gateway"
	"github.com/thereceipt/thermal-bridge/internal/printer"
	"github.com/thereceipt/thermal-bridge/internal/printjob"
	"github.com/thereceipt/thermal-bridge/internal/sdk"
)

type fixture struct {
	sim     *sdk.Simulator
	adapter *printer.Adapter
	source  *battery.Broadcaster
	dash    *Dashboard
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sim := sdk.NewSimulator()
	adapter := printer.NewAdapter(sim, printer.DefaultConfig())
	t.Cleanup(adapter.Close)

	source := battery.NewBroadcaster()
	gw := gateway.New(adapter, source)

	dash := NewDashboard(Options{
		Gateway:         gw,
		Queue:           adapter.Queue(),
		Battery:         source,
		Address:         ":12212",
		Driver:          "simulate",
		ResponseTimeout: time.Second,
	})
	return &fixture{sim: sim, adapter: adapter, source: source, dash: dash}
}

func (f *fixture) logText() string {
	return f.dash.logsArea.GetText(true)
}

func TestStatusText(t *testing.T) {
	f := newFixture(t)

	text := f.dash.statusText()
	assert.Contains(t, text, "disconnected")
	assert.Contains(t, text, "no reading")
	assert.Contains(t, text, "Driver: simulate")
	assert.Contains(t, text, "API: :12212")

	f.source.Publish(battery.Event{Kind: battery.KindChanged, Status: battery.StatusDischarging, Level: 10, Scale: 100})
	f.dash.submit("connect")
	require.Eventually(t, f.dash.gateway.Connected, 2*time.Second, 10*time.Millisecond)

	text = f.dash.statusText()
	assert.Contains(t, text, "[green]connected")
	assert.Contains(t, text, "10% discharging")
	assert.Contains(t, text, "(low)")
	assert.NotContains(t, text, "no paper")
}

func TestStatusText_NoPaper(t *testing.T) {
	f := newFixture(t)
	f.sim.FailOn(sdk.OpPrintString, 1, sdk.ErrNoPaper)

	_, reports, err := f.adapter.Print([]printjob.Item{{Type: printjob.TypeText, Data: "a"}}, false)
	require.NoError(t, err)
	for range reports {
	}

	assert.Contains(t, f.dash.statusText(), "(no paper)")
}

func TestSubmit_LogsResults(t *testing.T) {
	f := newFixture(t)

	f.dash.submit("connected")
	require.Eventually(t, func() bool {
		return containsAll(f.logText(), "> connected", "connected: false")
	}, 2*time.Second, 10*time.Millisecond)

	f.dash.submit("frobnicate")
	require.Eventually(t, func() bool {
		return containsAll(f.logText(), "unknown command: frobnicate")
	}, 2*time.Second, 10*time.Millisecond)

	f.dash.submit("clear")
	assert.Empty(t, f.logText())

	// blank input is ignored
	f.dash.submit("   ")
	assert.Empty(t, f.logText())
}

func TestRefreshJobs(t *testing.T) {
	f := newFixture(t)

	_, reports := f.adapter.Queue().Enqueue([]printjob.Item{{Type: printjob.TypeText, Data: "a"}})
	for range reports {
	}

	f.dash.refreshJobs()
	assert.Equal(t, 3, f.dash.jobsTable.GetRowCount(), "header, one job, summary")
	assert.Contains(t, f.dash.jobsTable.GetCell(1, 0).Text, printer.JobCompleted)
	assert.Contains(t, f.dash.jobsTable.GetCell(2, 0).Text, "[1] Completed")

	f.dash.showJob(1)
	details := f.dash.jobDetails.GetText(true)
	assert.Contains(t, details, "Status: completed")
	assert.Contains(t, details, "Items: 1")

	// the summary row carries no job
	f.dash.showJob(2)
	assert.Empty(t, f.dash.jobDetails.GetText(true))
}

func TestFormatResult(t *testing.T) {
	r := &command.Result{
		Success: true,
		Message: "Found 1 job(s)",
		Data: map[string]interface{}{
			"jobs": []map[string]interface{}{
				{"id": "j1", "status": "completed"},
			},
			"value": true,
		},
	}

	assert.Equal(t, "Found 1 job(s)\n  id=j1 status=completed", formatResult(r))
}

func TestLogWriter(t *testing.T) {
	f := newFixture(t)
	w := f.dash.LogWriter()

	line := []byte("time=now level=ERROR msg=\"print failed\"\n")
	n, err := w.Write(line)
	require.NoError(t, err)
	assert.Equal(t, len(line), n)

	// blank lines are dropped
	n, err = w.Write([]byte("\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, 1, strings.Count(f.logText(), "print failed"))
	assert.Contains(t, f.dash.logsArea.GetText(false), "[red]")
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
