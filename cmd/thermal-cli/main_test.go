package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest_Compose(t *testing.T) {
	body, err := buildRequest([]string{"print", "--compose", "text:Hello", "align:center", "walk:3"})
	require.NoError(t, err)

	assert.Equal(t, "print", body["method"])
	data := body["args"].(map[string]any)["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "text", data[0].(map[string]any)["type"])
	assert.Equal(t, "center", data[0].(map[string]any)["alignment"])
	assert.Equal(t, "walkpaper", data[1].(map[string]any)["type"])
}

func TestBuildRequest_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte("items:\n  - type: text\n    data: hi\n"), 0o644))

	body, err := buildRequest([]string{"print", path})
	require.NoError(t, err)
	data := body["args"].(map[string]any)["data"].([]any)
	require.Len(t, data, 1)

	_, err = buildRequest([]string{"print"})
	assert.Error(t, err)
}

func TestBuildRequest_Call(t *testing.T) {
	body, err := buildRequest([]string{"call", "checkStatus"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"method": "checkStatus"}, body)

	body, err = buildRequest([]string{"call", "print", `{"data":[]}`})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"data": []any{}}, body["args"])

	_, err = buildRequest([]string{"call", "print", "{"})
	assert.Error(t, err)
}

func TestBuildRequest_Typed(t *testing.T) {
	body, err := buildRequest([]string{"job", "status", "abc"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"command": "job status abc"}, body)
}

func TestSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/command", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(504)
		w.Write([]byte(`{"error":"connect: no reply"}`))
	}))
	defer srv.Close()

	status, reply, err := send(srv.Client(), srv.URL+"/", map[string]any{"method": "connect"})
	require.NoError(t, err)
	assert.Equal(t, 504, status)
	assert.Equal(t, "connect", got["method"])

	text, ok := render(status, reply)
	assert.False(t, ok)
	assert.Equal(t, "Error: connect: no reply", text)
}

func TestRender(t *testing.T) {
	tests := []struct {
		name  string
		reply map[string]any
		want  string
		ok    bool
	}{
		{"success", map[string]any{"event": "success", "value": true}, "ok: true", true},
		{"printer error", map[string]any{"event": "error", "code": "3", "message": "No paper"}, "Error 3: No paper", false},
		{"details", map[string]any{"event": "error", "code": "11", "message": "Print error", "details": "boom"}, "Error 11: Print error (boom)", false},
		{"not implemented", map[string]any{"event": "not_implemented"}, "Error: not implemented", false},
		{"typed", map[string]any{"success": true, "message": "Found 0 job(s)", "jobs": []any{}}, "Found 0 job(s)\nJobs:", true},
		{"typed error", map[string]any{"success": false, "error": "unknown command"}, "Error: unknown command", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, ok := render(200, tt.reply)
			assert.Equal(t, tt.want, text)
			assert.Equal(t, tt.ok, ok)
		})
	}
}
