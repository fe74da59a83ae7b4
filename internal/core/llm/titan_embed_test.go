package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitanEmbedV1(t *testing.T) {
	rt := &fakeRuntime{reply: `{"embedding":[0.1,0.2,0.3],"inputTextTokenCount":3}`}
	vec, err := NewTitanEmbedder(rt, "").Embed(context.Background(), "hello", 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "amazon.titan-embed-text-v1", rt.modelID)
	assert.Equal(t, "hello", rt.body["inputText"])
	assert.NotContains(t, rt.body, "dimensions")
}

func TestTitanEmbedV2SendsDimensions(t *testing.T) {
	rt := &fakeRuntime{reply: `{"embedding":[1,0]}`}
	_, err := NewTitanEmbedder(rt, "amazon.titan-embed-text-v2:0").Embed(context.Background(), "x", 512)
	require.NoError(t, err)
	assert.EqualValues(t, 512, rt.body["dimensions"])
}

func TestTitanEmbedEmptyResult(t *testing.T) {
	rt := &fakeRuntime{reply: `{"embedding":[]}`}
	_, err := NewTitanEmbedder(rt, "").Embed(context.Background(), "x", 3)
	assert.Error(t, err)
}
