// Package ocr wraps the text detection backends and the asynchronous job loop.
package ocr

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/google/uuid"

	"github.com/markdave123-py/docrag/internal/core"
)

// textractAPI is the subset of *textract.Client the adapter calls.
type textractAPI interface {
	DetectDocumentText(ctx context.Context, in *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
	StartDocumentTextDetection(ctx context.Context, in *textract.StartDocumentTextDetectionInput, optFns ...func(*textract.Options)) (*textract.StartDocumentTextDetectionOutput, error)
	GetDocumentTextDetection(ctx context.Context, in *textract.GetDocumentTextDetectionInput, optFns ...func(*textract.Options)) (*textract.GetDocumentTextDetectionOutput, error)
}

var (
	_ core.TextDetector      = (*Textract)(nil)
	_ core.AsyncTextDetector = (*Textract)(nil)
)

type Textract struct {
	api textractAPI
}

func NewTextract(awsCfg aws.Config) *Textract {
	return &Textract{api: textract.NewFromConfig(awsCfg)}
}

func (t *Textract) DetectText(ctx context.Context, name string, data []byte) ([]string, error) {
	out, err := t.api.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: data},
	})
	if err != nil {
		return nil, fmt.Errorf("textract detect %s: %w", name, err)
	}
	return lineTexts(out.Blocks), nil
}

// StartJob submits an asynchronous detection job. The request token is
// derived from the location so a redelivered event reuses the same job.
func (t *Textract) StartJob(ctx context.Context, bucket, key string) (string, error) {
	token := uuid.NewSHA1(uuid.NameSpaceURL, []byte(bucket+"/"+key)).String()
	out, err := t.api.StartDocumentTextDetection(ctx, &textract.StartDocumentTextDetectionInput{
		DocumentLocation: &types.DocumentLocation{
			S3Object: &types.S3Object{Bucket: aws.String(bucket), Name: aws.String(key)},
		},
		ClientRequestToken: aws.String(token),
	})
	if err != nil {
		return "", fmt.Errorf("textract start %s/%s: %w", bucket, key, err)
	}
	return aws.ToString(out.JobId), nil
}

func (t *Textract) PollJob(ctx context.Context, jobID, nextToken string) (core.JobPage, error) {
	in := &textract.GetDocumentTextDetectionInput{JobId: aws.String(jobID)}
	if nextToken != "" {
		in.NextToken = aws.String(nextToken)
	}
	out, err := t.api.GetDocumentTextDetection(ctx, in)
	if err != nil {
		return core.JobPage{}, fmt.Errorf("textract poll %s: %w", jobID, err)
	}
	return core.JobPage{
		Status:    jobStatus(out.JobStatus),
		Lines:     lineTexts(out.Blocks),
		NextToken: aws.ToString(out.NextToken),
		Message:   aws.ToString(out.StatusMessage),
	}, nil
}

// jobStatus folds PARTIAL_SUCCESS into FAILED: only a full success is usable.
func jobStatus(s types.JobStatus) core.JobStatus {
	switch s {
	case types.JobStatusInProgress:
		return core.JobInProgress
	case types.JobStatusSucceeded:
		return core.JobSucceeded
	default:
		return core.JobFailed
	}
}

func lineTexts(blocks []types.Block) []string {
	var lines []string
	for _, b := range blocks {
		if b.BlockType != types.BlockTypeLine || b.Text == nil {
			continue
		}
		lines = append(lines, *b.Text)
	}
	return lines
}
