package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"
	"github.com/thereceipt/thermal-bridge/internal/printer"
)

func (d *Dashboard) refreshJobs() {
	selected, _ := d.jobsTable.GetSelection()
	d.jobsTable.Clear()

	headers := []string{"Status", "Job", "Items", "Age"}
	for i, h := range headers {
		d.jobsTable.SetCell(0, i, tview.NewTableCell(h).SetAlign(tview.AlignCenter).SetSelectable(false))
	}

	jobs := d.queue.GetAllJobs()

	counts := make(map[string]int)
	for i, job := range jobs {
		row := i + 1
		counts[job.Status]++

		d.jobsTable.SetCell(row, 0, tview.NewTableCell(statusColor(job.Status)+job.Status).SetReference(job.ID))
		d.jobsTable.SetCell(row, 1, tview.NewTableCell(shortID(job.ID)))
		d.jobsTable.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("%d", len(job.Items))))
		d.jobsTable.SetCell(row, 3, tview.NewTableCell(time.Since(job.CreatedAt).Truncate(time.Second).String()))
	}

	if len(jobs) > 0 {
		summary := fmt.Sprintf("[%d] Queued [%d] Printing [%d] Completed [%d] Failed",
			counts[printer.JobQueued], counts[printer.JobPrinting], counts[printer.JobCompleted], counts[printer.JobFailed])
		d.jobsTable.SetCell(len(jobs)+1, 0, tview.NewTableCell(summary).SetSelectable(false).SetExpansion(1))
	}

	if selected > len(jobs) {
		selected = len(jobs)
	}
	if selected > 0 {
		d.jobsTable.Select(selected, 0)
		d.showJob(selected)
	} else {
		d.jobDetails.Clear()
	}
}

// showJob renders the reports of the job on row
func (d *Dashboard) showJob(row int) {
	cell := d.jobsTable.GetCell(row, 0)
	id, ok := cell.GetReference().(string)
	if !ok {
		d.jobDetails.Clear()
		return
	}

	job := d.queue.GetJob(id)
	if job == nil {
		d.jobDetails.SetText("[gray]job removed[white]")
		return
	}
	d.jobDetails.SetText(jobText(job))
}

func jobText(job *printer.PrintJob) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID: %s\nStatus: %s%s[white]\nCreated: %s\n",
		job.ID, statusColor(job.Status), job.Status, job.CreatedAt.Format("15:04:05"))
	if !job.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "Finished: %s\n", job.FinishedAt.Format("15:04:05"))
	}
	if msg := job.ErrorText(); msg != "" {
		fmt.Fprintf(&b, "[red]Error: %s[white]\n", tview.Escape(msg))
	}

	fmt.Fprintf(&b, "Items: %d\nReports: %d\n", len(job.Items), job.Reports)
	return b.String()
}

func statusColor(status string) string {
	switch status {
	case printer.JobQueued:
		return "[gray]"
	case printer.JobPrinting:
		return "[yellow]"
	case printer.JobCompleted:
		return "[green]"
	case printer.JobFailed:
		return "[red]"
	default:
		return "[white]"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
