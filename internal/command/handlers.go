package command

import (
	"fmt"
	"time"

	"github.com/thereceipt/thermal-bridge/internal/gateway"
	"github.com/thereceipt/thermal-bridge/internal/printer"
	"github.com/thereceipt/thermal-bridge/internal/printjob"
)

// handlePrint handles print commands
// Usage: print <job-file> | print --compose <items...>
func (e *Executor) handlePrint(args []string) *Result {
	if len(args) == 0 {
		return &Result{
			Success: false,
			Error:   "usage: print <job-file> | print --compose <items...>",
		}
	}

	var items []printjob.Item
	var err error
	if args[0] == "--compose" {
		items, err = Compose(args[1:])
	} else {
		items, err = LoadItems(args[0])
	}
	if err != nil {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("failed to build print job: %v", err),
		}
	}

	return e.call("print", gateway.Call{
		Method: gateway.MethodPrint,
		Args:   map[string]any{"data": printjob.EncodeItems(items)},
	})
}

// handleJob handles job commands
// Usage: job list | status <id> | clear
func (e *Executor) handleJob(args []string) *Result {
	if len(args) == 0 {
		return &Result{
			Success: false,
			Error:   "usage: job <list|status|clear>",
		}
	}

	subcommand := args[0]

	switch subcommand {
	case "list":
		jobs := e.queue.GetAllJobs()
		jobList := make([]map[string]interface{}, len(jobs))
		for i, job := range jobs {
			jobList[i] = jobData(job)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Found %d job(s)", len(jobs)),
			Data: map[string]interface{}{
				"jobs": jobList,
			},
		}

	case "status":
		if len(args) < 2 {
			return &Result{
				Success: false,
				Error:   "usage: job status <id>",
			}
		}
		jobID := args[1]
		job := e.queue.GetJob(jobID)
		if job == nil {
			return &Result{
				Success: false,
				Error:   fmt.Sprintf("job not found: %s", jobID),
			}
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Job %s: %s", job.ID, job.Status),
			Data:    jobData(job),
		}

	case "clear":
		removed := e.queue.ClearCompleted()
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Cleared %d finished job(s)", removed),
		}

	default:
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("unknown job subcommand: %s. Use: list, status, clear", subcommand),
		}
	}
}

func jobData(job *printer.PrintJob) map[string]interface{} {
	data := map[string]interface{}{
		"id":         job.ID,
		"status":     job.Status,
		"items":      len(job.Items),
		"reports":    job.Reports,
		"created_at": job.CreatedAt.Format(time.RFC3339),
	}
	if job.Error != nil {
		data["error"] = job.Error.Error()
	}
	return data
}

// handleDetect handles detect command
// Usage: detect
func (e *Executor) handleDetect(args []string) *Result {
	devices, err := e.detect()
	if err != nil {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("detection failed: %v", err),
		}
	}

	list := make([]map[string]interface{}, len(devices))
	for i, d := range devices {
		list[i] = map[string]interface{}{
			"description": d.Description,
			"transport":   d.Transport.String(),
		}
	}
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Detected %d printer(s)", len(devices)),
		Data: map[string]interface{}{
			"devices": list,
		},
	}
}

// handleHelp handles help command
func (e *Executor) handleHelp(args []string) *Result {
	helpText := `Available Commands:

  connect
    Open the printer session and start watching the battery

  disconnect
    Close the printer session

  connected
    Report whether the printer is connected

  status
    Ask the printer for its status

  print <job-file>
    Print the items of a YAML or JSON job file

  print --compose <items...>
    Compose and print items from command-line arguments
    Items: text:"..." image:<path> qr:"..." walk[:n] pdf:<data>
    Properties: align:<left|center|right> size:<18|24|34|44|54|64>

  job list
    List all print jobs

  job status <id>
    Get status of a specific job

  job clear
    Clear finished jobs from the queue

  detect
    Scan for USB and serial printers

  help
    Show this help message

Examples:
  print ./receipt.yaml
  print --compose text:"Hello World" walk:2
  print --compose text:"Title" size:34 align:center image:logo.png walk:3
`

	return &Result{
		Success: true,
		Message: helpText,
	}
}
