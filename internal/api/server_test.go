package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereceipt/thermal-bridge/internal/battery"
	"github.com/thereceipt/thermal-bridge/internal/gateway"
	"github.com/thereceipt/thermal-bridge/internal/printer"
	"github.com/thereceipt/thermal-bridge/internal/sdk"
)

type fixture struct {
	sim    *sdk.Simulator
	push   *battery.Broadcaster
	gw     *gateway.Gateway
	server *Server
	http   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sim := sdk.NewSimulator()
	adapter := printer.NewAdapter(sim, printer.DefaultConfig())
	t.Cleanup(adapter.Close)

	push := battery.NewBroadcaster()
	gw := gateway.New(adapter, push)

	s := NewServer(Options{
		Gateway:         gw,
		Queue:           adapter.Queue(),
		Battery:         push,
		Push:            push,
		ResponseTimeout: 200 * time.Millisecond,
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return &fixture{sim: sim, push: push, gw: gw, server: s, http: ts}
}

func (f *fixture) post(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(f.http.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (f *fixture) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()

	resp, err := http.Get(f.http.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestCommand_Connect(t *testing.T) {
	f := newFixture(t)

	code, body := f.post(t, "/command", map[string]any{"method": "connect"})
	assert.Equal(t, 200, code)
	assert.Equal(t, "success", body["event"])
	assert.Equal(t, true, body["value"])

	// a second connect produces no reply
	code, body = f.post(t, "/command", map[string]any{"method": "connect"})
	assert.Equal(t, 504, code)
	assert.Contains(t, body["error"], "no reply")
}

func TestCommand_NotImplemented(t *testing.T) {
	f := newFixture(t)

	code, body := f.post(t, "/command", map[string]any{"method": "openDrawer"})
	assert.Equal(t, 501, code)
	assert.Equal(t, "not_implemented", body["event"])
}

func TestCommand_BadRequest(t *testing.T) {
	f := newFixture(t)

	code, _ := f.post(t, "/command", map[string]any{"args": map[string]any{}})
	assert.Equal(t, 400, code)

	resp, err := http.Post(f.http.URL+"/command", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
}

func TestCommand_PrintError(t *testing.T) {
	f := newFixture(t)
	f.sim.FailOn(sdk.OpPrintString, 1, sdk.ErrOverHeat)

	code, body := f.post(t, "/command", map[string]any{
		"method": "print",
		"args": map[string]any{"data": []any{
			map[string]any{"type": "text", "data": "hot"},
		}},
	})
	assert.Equal(t, 200, code)
	assert.Equal(t, "error", body["event"])
	assert.Equal(t, "12", body["code"])
	assert.Equal(t, "Overheat error", body["message"])
}

func TestCommand_Typed(t *testing.T) {
	f := newFixture(t)

	code, body := f.post(t, "/command", map[string]any{"command": "connected"})
	assert.Equal(t, 200, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["value"])
	assert.Equal(t, "connected: false", body["message"])

	code, body = f.post(t, "/command", map[string]any{"command": "frobnicate"})
	assert.Equal(t, 400, code)
	assert.Equal(t, false, body["success"])
}

func TestBattery_PushMakesPrintFail(t *testing.T) {
	f := newFixture(t)
	f.post(t, "/command", map[string]any{"method": "connect"})

	code, body := f.post(t, "/battery", map[string]any{"kind": "changed", "status": "discharging", "level": 12})
	assert.Equal(t, 200, code)
	assert.Equal(t, true, body["low"])

	_, health := f.get(t, "/health")
	assert.Equal(t, true, health["low_battery"])
	assert.Equal(t, true, health["connected"])

	_, body = f.post(t, "/command", map[string]any{"method": "print"})
	assert.Equal(t, "4", body["code"])
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	code, health := f.get(t, "/health")
	assert.Equal(t, 200, code)
	assert.Equal(t, false, health["no_paper"])
	assert.Equal(t, float64(0), health["clients"])
	assert.Equal(t, float64(1), health["battery_subscribers"], "the server itself")

	f.post(t, "/command", map[string]any{"method": "connect"})
	dialWS(t, f)

	_, health = f.get(t, "/health")
	assert.Equal(t, float64(1), health["clients"])
	assert.Equal(t, float64(2), health["battery_subscribers"])
}

func TestHealth_NoPaperLatch(t *testing.T) {
	f := newFixture(t)
	f.sim.FailOn(sdk.OpPrintString, 1, sdk.ErrNoPaper)
	job := map[string]any{
		"method": "print",
		"args":   map[string]any{"data": []any{map[string]any{"type": "text", "data": "x"}}},
	}

	_, body := f.post(t, "/command", job)
	assert.Equal(t, "3", body["code"])
	_, health := f.get(t, "/health")
	assert.Equal(t, true, health["no_paper"])

	// the fast failure clears the latch
	_, body = f.post(t, "/command", job)
	assert.Equal(t, "3", body["code"])
	_, health = f.get(t, "/health")
	assert.Equal(t, false, health["no_paper"])
}

func TestBattery_Validation(t *testing.T) {
	f := newFixture(t)

	code, _ := f.post(t, "/battery", map[string]any{"kind": "changed"})
	assert.Equal(t, 400, code)

	code, _ = f.post(t, "/battery", map[string]any{"kind": "solar", "level": 3})
	assert.Equal(t, 400, code)

	code, body := f.post(t, "/battery", map[string]any{"kind": "capacity", "level": 0, "action": 0})
	assert.Equal(t, 200, code)
	assert.Equal(t, true, body["low"])
}

func TestJobs(t *testing.T) {
	f := newFixture(t)

	_, body := f.post(t, "/command", map[string]any{
		"method": "print",
		"args": map[string]any{"data": []any{
			map[string]any{"type": "text", "data": "a"},
		}},
	})
	require.Equal(t, "success", body["event"])

	var jobs []any
	require.Eventually(t, func() bool {
		_, body := f.get(t, "/jobs")
		jobs, _ = body["jobs"].([]any)
		return len(jobs) == 1 && jobs[0].(map[string]any)["status"] == printer.JobCompleted
	}, 2*time.Second, 10*time.Millisecond)

	id := jobs[0].(map[string]any)["id"].(string)
	code, job := f.get(t, "/job/"+id)
	assert.Equal(t, 200, code)
	assert.Equal(t, float64(1), job["items"])

	code, _ = f.get(t, "/job/missing")
	assert.Equal(t, 404, code)

	_, cleared := f.post(t, "/jobs/clear", nil)
	assert.Equal(t, float64(1), cleared["removed"])
}

func TestDevices(t *testing.T) {
	f := newFixture(t)
	f.server.detect = func() ([]sdk.Device, error) {
		return []sdk.Device{{Description: "Serial: /dev/ttyUSB0", Transport: sdk.Transport{Type: "serial", Device: "/dev/ttyUSB0"}}}, nil
	}

	code, body := f.get(t, "/devices")
	assert.Equal(t, 200, code)
	devices := body["devices"].([]any)
	require.Len(t, devices, 1)
	assert.Equal(t, "serial", devices[0].(map[string]any)["type"])

	f.server.detect = func() ([]sdk.Device, error) { return nil, errors.New("libusb missing") }
	code, _ = f.get(t, "/devices")
	assert.Equal(t, 500, code)
}

func dialWS(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return f.server.Clients() == 1 }, time.Second, 10*time.Millisecond)
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket_StreamsEveryReport(t *testing.T) {
	f := newFixture(t)
	conn := dialWS(t, f)
	f.sim.FailOn(sdk.OpPrintString, 3, sdk.ErrDeviceTransmitData)

	require.NoError(t, conn.WriteJSON(WSRequest{ID: "c1", Method: "connect"}))
	msg := readJSON(t, conn)
	assert.Equal(t, "c1", msg["id"])
	assert.Equal(t, "success", msg["event"])

	data := make([]any, 4)
	for i := range data {
		data[i] = map[string]any{"type": "text", "data": "line"}
	}
	require.NoError(t, conn.WriteJSON(WSRequest{ID: float64(7), Method: "print", Args: map[string]any{"data": data}}))

	var events []string
	for i := 0; i < 3; i++ {
		msg := readJSON(t, conn)
		assert.Equal(t, float64(7), msg["id"])
		events = append(events, msg["event"].(string))
		if msg["event"] == "error" {
			assert.Equal(t, "13", msg["code"])
		}
	}
	assert.Equal(t, []string{"success", "success", "error"}, events)
}

func TestWebSocket_MissingMethod(t *testing.T) {
	f := newFixture(t)
	conn := dialWS(t, f)

	require.NoError(t, conn.WriteJSON(map[string]any{"id": "x"}))
	msg := readJSON(t, conn)
	assert.Equal(t, "error", msg["event"])
	assert.Equal(t, gateway.CodeArgument, msg["code"])
}

func TestWebSocket_BatteryBroadcast(t *testing.T) {
	f := newFixture(t)
	conn := dialWS(t, f)

	f.push.Publish(battery.Event{Kind: battery.KindChanged, Status: battery.StatusCharging, Level: 80, Scale: 100})

	msg := readJSON(t, conn)
	assert.Equal(t, EventBattery, msg["event"])
	assert.Equal(t, false, msg["low"])
	ev := msg["battery"].(map[string]any)
	assert.Equal(t, "changed", ev["kind"])
	assert.Equal(t, "charging", ev["status"])
	assert.Equal(t, float64(80), ev["level"])
}

func TestShutdownClosesClients(t *testing.T) {
	f := newFixture(t)
	conn := dialWS(t, f)

	require.NoError(t, f.server.Shutdown(t.Context()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	// the gateway never connected, so the server was the only subscriber
	assert.Zero(t, f.push.Subscribers())
}
