package core

import (
	"context"
)

// TextDetector recognises text lines in a single document held in memory.
// name is the object key; backends that sniff formats use its extension.
type TextDetector interface {
	DetectText(ctx context.Context, name string, data []byte) ([]string, error)
}

// JobStatus is the state of an asynchronous text detection job.
type JobStatus string

const (
	JobSubmitted  JobStatus = "SUBMITTED"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobSucceeded  JobStatus = "SUCCEEDED"
	JobFailed     JobStatus = "FAILED"
)

// Terminal reports whether no further polling is needed.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// JobPage is one page of an asynchronous job result.
type JobPage struct {
	Status    JobStatus
	Lines     []string
	NextToken string
	Message   string
}

// AsyncTextDetector runs text detection over an object that stays in storage.
type AsyncTextDetector interface {
	StartJob(ctx context.Context, bucket, key string) (jobID string, err error)
	PollJob(ctx context.Context, jobID, nextToken string) (JobPage, error)
}
