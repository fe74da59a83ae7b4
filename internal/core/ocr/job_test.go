package ocr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docrag/internal/core"
)

// scriptedJob replays a fixed sequence of status polls, then serves result
// pages keyed by continuation token.
type scriptedJob struct {
	startErr error
	statuses []core.JobPage
	pages    map[string]core.JobPage
	polls    int
	tokens   []string
}

func (s *scriptedJob) StartJob(ctx context.Context, bucket, key string) (string, error) {
	if s.startErr != nil {
		return "", s.startErr
	}
	return "job-1", nil
}

func (s *scriptedJob) PollJob(ctx context.Context, jobID, nextToken string) (core.JobPage, error) {
	if nextToken != "" {
		s.tokens = append(s.tokens, nextToken)
		return s.pages[nextToken], nil
	}
	p := s.statuses[s.polls]
	if s.polls < len(s.statuses)-1 {
		s.polls++
	}
	return p, nil
}

func noSleep(count *int) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*count++
		return nil
	}
}

func TestJobRunnerCollectsAllPages(t *testing.T) {
	job := &scriptedJob{
		statuses: []core.JobPage{
			{Status: core.JobInProgress},
			{Status: core.JobInProgress},
			{Status: core.JobSucceeded, Lines: []string{"INVOICE", "Total: 42"}, NextToken: "p2"},
		},
		pages: map[string]core.JobPage{
			"p2": {Status: core.JobSucceeded, Lines: []string{"page two"}, NextToken: "p3"},
			"p3": {Status: core.JobSucceeded, Lines: []string{"page three"}},
		},
	}
	sleeps := 0
	var seen []core.JobStatus
	r := NewJobRunner(job, 5*time.Second, 10).WithSleep(noSleep(&sleeps))
	r.OnTransition = func(_ string, from, to core.JobStatus) { seen = append(seen, to) }

	lines, err := r.Run(context.Background(), "processed", "scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"INVOICE", "Total: 42", "page two", "page three"}, lines)
	assert.Equal(t, []string{"p2", "p3"}, job.tokens)
	assert.Equal(t, 2, sleeps)
	assert.Equal(t, []core.JobStatus{core.JobInProgress, core.JobSucceeded}, seen)
}

func TestJobRunnerFailedJobIsHardFailure(t *testing.T) {
	job := &scriptedJob{statuses: []core.JobPage{
		{Status: core.JobInProgress},
		{Status: core.JobFailed, Message: "unsupported document"},
	}}
	sleeps := 0
	_, err := NewJobRunner(job, time.Second, 10).WithSleep(noSleep(&sleeps)).Run(context.Background(), "b", "k.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported document")
}

func TestJobRunnerGivesUpAfterMaxPolls(t *testing.T) {
	job := &scriptedJob{statuses: []core.JobPage{{Status: core.JobInProgress}}}
	sleeps := 0
	_, err := NewJobRunner(job, time.Second, 3).WithSleep(noSleep(&sleeps)).Run(context.Background(), "b", "k.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 polls")
	assert.Equal(t, 2, sleeps)
}

func TestJobRunnerStartError(t *testing.T) {
	boom := errors.New("throttled")
	_, err := NewJobRunner(&scriptedJob{startErr: boom}, time.Second, 3).Run(context.Background(), "b", "k.pdf")
	assert.ErrorIs(t, err, boom)
}

func TestJobStateRejectsIllegalTransition(t *testing.T) {
	st := &jobState{id: "j", current: core.JobSucceeded}
	assert.Error(t, st.advance(core.JobInProgress))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindImage, KindOf("a/photo.JPG"))
	assert.Equal(t, KindImage, KindOf("x.png"))
	assert.Equal(t, KindDocument, KindOf("scan.pdf"))
	assert.Equal(t, KindDocument, KindOf("scan.tiff"))
	assert.Equal(t, KindNone, KindOf("notes.txt"))
}
