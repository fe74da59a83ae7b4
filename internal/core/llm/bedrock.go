package llm

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/markdave123-py/docrag/internal/core"
)

var _ core.ModelRuntime = (*BedrockRuntime)(nil)

// BedrockRuntime posts raw JSON bodies to InvokeModel.
type BedrockRuntime struct {
	client *bedrockruntime.Client
}

func NewBedrockRuntime(awsCfg aws.Config) *BedrockRuntime {
	return &BedrockRuntime{client: bedrockruntime.NewFromConfig(awsCfg)}
}

func (b *BedrockRuntime) InvokeModel(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke %s: %w", modelID, err)
	}
	return out.Body, nil
}
