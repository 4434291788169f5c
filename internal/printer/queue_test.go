package printer

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereceipt/thermal-bridge/internal/printjob"
)

func TestPrintQueue_Bookkeeping(t *testing.T) {
	q := NewPrintQueue(func(job *PrintJob, report func(Report)) error {
		if len(job.Items) == 0 {
			return errors.New("empty")
		}
		report(Report{Item: 0})
		return nil
	})
	defer q.Stop()

	ok, okReports := q.Enqueue([]printjob.Item{{Type: printjob.TypeText, Data: "x"}})
	bad, badReports := q.Enqueue(nil)

	_, err := uuid.Parse(ok.ID)
	require.NoError(t, err)
	assert.NotEqual(t, ok.ID, bad.ID)

	drain(t, okReports)
	drain(t, badReports)

	jobs := q.GetAllJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, JobCompleted, jobs[0].Status)
	assert.Equal(t, JobFailed, jobs[1].Status)
	assert.Equal(t, "empty", jobs[1].ErrorText())
	assert.False(t, jobs[1].FinishedAt.IsZero())

	assert.Nil(t, q.GetJob("missing"))
	assert.Equal(t, 2, q.ClearCompleted())
	assert.Empty(t, q.GetAllJobs())
}

func TestPrintQueue_StopFailsPendingJobs(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	q := NewPrintQueue(func(job *PrintJob, report func(Report)) error {
		close(started)
		<-release
		return nil
	})

	first, firstReports := q.Enqueue(nil)
	<-started
	second, secondReports := q.Enqueue(nil)

	q.cancel()
	close(release)
	q.Stop()

	drain(t, firstReports)
	got := drain(t, secondReports)
	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0].Err, ErrQueueStopped)

	assert.Equal(t, JobCompleted, q.GetJob(first.ID).Status)
	assert.Equal(t, JobFailed, q.GetJob(second.ID).Status)
}
