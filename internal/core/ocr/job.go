package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/markdave123-py/docrag/internal/core"
	objectclient "github.com/markdave123-py/docrag/internal/core/object-client"
)

// JobRunner drives one asynchronous detection job through
// SUBMITTED -> IN_PROGRESS -> SUCCEEDED|FAILED and collects every result page.
type JobRunner struct {
	det      core.AsyncTextDetector
	interval time.Duration
	maxPolls int
	sleep    objectclient.SleepFunc

	// OnTransition, when set, observes every state change.
	OnTransition func(jobID string, from, to core.JobStatus)
}

func NewJobRunner(det core.AsyncTextDetector, interval time.Duration, maxPolls int) *JobRunner {
	if maxPolls < 1 {
		maxPolls = 1
	}
	return &JobRunner{det: det, interval: interval, maxPolls: maxPolls, sleep: objectclient.ContextSleep}
}

// WithSleep returns a copy that waits between polls through s.
func (r *JobRunner) WithSleep(s objectclient.SleepFunc) *JobRunner {
	cp := *r
	cp.sleep = s
	return &cp
}

var validNext = map[core.JobStatus][]core.JobStatus{
	core.JobSubmitted:  {core.JobInProgress, core.JobSucceeded, core.JobFailed},
	core.JobInProgress: {core.JobInProgress, core.JobSucceeded, core.JobFailed},
}

type jobState struct {
	id      string
	current core.JobStatus
	notify  func(jobID string, from, to core.JobStatus)
}

func (s *jobState) advance(to core.JobStatus) error {
	for _, ok := range validNext[s.current] {
		if ok == to {
			if to != s.current && s.notify != nil {
				s.notify(s.id, s.current, to)
			}
			s.current = to
			return nil
		}
	}
	return fmt.Errorf("job %s: illegal transition %s -> %s", s.id, s.current, to)
}

// Run submits the job for bucket/key and blocks until it is terminal.
// A FAILED job, or one still running after maxPolls, is an error.
func (r *JobRunner) Run(ctx context.Context, bucket, key string) ([]string, error) {
	jobID, err := r.det.StartJob(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	st := &jobState{id: jobID, current: core.JobSubmitted, notify: r.OnTransition}
	slog.Info("OCR: job submitted", "bucket", bucket, "key", key, "job_id", jobID)

	var page core.JobPage
	for poll := 0; ; poll++ {
		page, err = r.det.PollJob(ctx, jobID, "")
		if err != nil {
			return nil, err
		}
		if err := st.advance(page.Status); err != nil {
			return nil, err
		}
		if page.Status.Terminal() {
			break
		}
		if poll+1 >= r.maxPolls {
			return nil, fmt.Errorf("job %s for %s/%s still %s after %d polls", jobID, bucket, key, page.Status, r.maxPolls)
		}
		if err := r.sleep(ctx, r.interval); err != nil {
			return nil, fmt.Errorf("job %s: %w", jobID, err)
		}
	}

	if st.current == core.JobFailed {
		return nil, fmt.Errorf("job %s for %s/%s failed: %s", jobID, bucket, key, page.Message)
	}

	lines := append([]string(nil), page.Lines...)
	for token := page.NextToken; token != ""; token = page.NextToken {
		page, err = r.det.PollJob(ctx, jobID, token)
		if err != nil {
			return nil, fmt.Errorf("job %s next page: %w", jobID, err)
		}
		lines = append(lines, page.Lines...)
	}
	slog.Info("OCR: job finished", "job_id", jobID, "lines", len(lines))
	return lines, nil
}
