package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/thereceipt/thermal-bridge/internal/command"
	"github.com/thereceipt/thermal-bridge/internal/printjob"
)

const (
	defaultServerURL = "http://localhost:12212"
)

func main() {
	fs := pflag.NewFlagSet("thermal-cli", pflag.ContinueOnError)
	fs.Usage = printUsage
	serverURL := fs.StringP("server", "s", defaultServerURL, "Server URL")
	raw := fs.Bool("raw", false, "Print the server's JSON reply as is")
	timeout := fs.Duration("timeout", 60*time.Second, "HTTP timeout")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if fs.NArg() == 0 {
		printUsage()
		os.Exit(1)
	}

	body, err := buildRequest(fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: *timeout}
	status, reply, err := send(client, *serverURL, body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *raw {
		out, _ := json.MarshalIndent(reply, "", "  ")
		fmt.Println(string(out))
	}

	text, ok := render(status, reply)
	if !ok {
		if !*raw {
			fmt.Fprintln(os.Stderr, text)
		}
		os.Exit(1)
	}
	if !*raw && text != "" {
		fmt.Println(text)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Thermal Bridge CLI

Usage:
  thermal-cli [flags] <command>

Flags:
  -s, --server <url>   Server URL (default: %s)
      --raw            Print the JSON reply
      --timeout <d>    HTTP timeout (default: 60s)

Commands:
  connect | disconnect | connected | status
    Printer session commands

  print <job-file>
    Print the items of a local YAML or JSON job file

  print --compose <items...>
    Compose and print items from command-line arguments
    Items: text:"..." image:<path> qr:"..." walk[:n] pdf:<data>
    Properties: align:<left|center|right> size:<18|24|34|44|54|64>

  call <method> [json-args]
    Send a raw gateway call, e.g. call checkStatus

  job list | job status <id> | job clear
  detect
  help

Examples:
  thermal-cli connect
  thermal-cli print ./receipt.yaml
  thermal-cli print --compose text:"Hello" align:center walk:2
  thermal-cli call print '{"data":[{"type":"text","data":"hi"}]}'
  thermal-cli -s http://kiosk.local:12212 job list

`, defaultServerURL)
}

// buildRequest turns the command line into a /command request body. Print
// jobs are read here, so image paths are local to the caller.
func buildRequest(args []string) (map[string]any, error) {
	switch args[0] {
	case "print":
		items, err := localItems(args[1:])
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"method": "print",
			"args":   map[string]any{"data": printjob.EncodeItems(items)},
		}, nil

	case "call":
		if len(args) < 2 {
			return nil, errors.New("usage: call <method> [json-args]")
		}
		body := map[string]any{"method": args[1]}
		if len(args) > 2 {
			var callArgs map[string]any
			if err := json.Unmarshal([]byte(strings.Join(args[2:], " ")), &callArgs); err != nil {
				return nil, fmt.Errorf("invalid json args: %w", err)
			}
			body["args"] = callArgs
		}
		return body, nil

	default:
		return map[string]any{"command": joinCommand(args)}, nil
	}
}

func localItems(args []string) ([]printjob.Item, error) {
	if len(args) == 0 {
		return nil, errors.New("usage: print <job-file> | print --compose <items...>")
	}
	if args[0] == "--compose" {
		return command.Compose(args[1:])
	}
	return command.LoadItems(args[0])
}

// joinCommand rebuilds a typed command, quoting arguments the shell split on
func joinCommand(args []string) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		if strings.ContainsAny(arg, " \t") && !strings.ContainsAny(arg, `"`) {
			arg = `"` + arg + `"`
		}
		parts[i] = arg
	}
	return strings.Join(parts, " ")
}

func send(client *http.Client, serverURL string, body map[string]any) (int, map[string]any, error) {
	url := strings.TrimSuffix(serverURL, "/") + "/command"

	jsonData, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	var reply map[string]any
	if err := json.Unmarshal(data, &reply); err != nil {
		return 0, nil, fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode, reply, nil
}

// render formats a reply of either shape: a gateway reply carries "event",
// a typed command result carries "success"
func render(status int, reply map[string]any) (string, bool) {
	if event, ok := reply["event"].(string); ok {
		switch event {
		case "success":
			return fmt.Sprintf("ok: %v", reply["value"]), true
		case "not_implemented":
			return "Error: not implemented", false
		default:
			text := fmt.Sprintf("Error %v: %v", reply["code"], reply["message"])
			if details, ok := reply["details"]; ok && details != nil {
				text += fmt.Sprintf(" (%v)", details)
			}
			return text, false
		}
	}

	if success, _ := reply["success"].(bool); success {
		return renderResult(reply), true
	}

	if msg, ok := reply["error"].(string); ok {
		return "Error: " + msg, false
	}
	return fmt.Sprintf("Error: HTTP %d", status), false
}

func renderResult(reply map[string]any) string {
	var b strings.Builder
	if msg, ok := reply["message"].(string); ok {
		b.WriteString(msg)
	}

	if jobs, ok := reply["jobs"].([]any); ok {
		b.WriteString("\nJobs:")
		for _, j := range jobs {
			if job, ok := j.(map[string]any); ok {
				fmt.Fprintf(&b, "\n  %s: %s (%v items)", job["id"], job["status"], job["items"])
			}
		}
	}

	if devices, ok := reply["devices"].([]any); ok {
		b.WriteString("\nDevices:")
		for _, d := range devices {
			if device, ok := d.(map[string]any); ok {
				fmt.Fprintf(&b, "\n  %s (%s)", device["description"], device["transport"])
			}
		}
	}

	skip := map[string]bool{"success": true, "message": true, "jobs": true, "devices": true, "value": true}
	keys := make([]string, 0, len(reply))
	for k := range reply {
		if !skip[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %v", k, reply[k])
	}

	return strings.TrimPrefix(b.String(), "\n")
}
