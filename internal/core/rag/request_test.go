package rag

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docrag/internal/core"
)

var defaults = Defaults{TopK: 5, ModelID: "anthropic.claude-3-sonnet", MaxTokens: 4096, Temperature: 0.7, TopP: 0.9}

func TestFromValues(t *testing.T) {
	v := url.Values{}
	v.Set("q", " invoice total ")
	v.Set("k", "3")
	v.Set("hybrid", "FALSE")
	v.Set("temperature", "0.1")
	v.Set("include_sources", "false")

	req, err := FromValues(v, defaults)
	require.NoError(t, err)
	assert.Equal(t, "invoice total", req.Query)
	assert.Equal(t, 3, req.TopK)
	assert.False(t, req.Hybrid)
	assert.False(t, req.IncludeSources)
	assert.InDelta(t, 0.1, req.Params.Temperature, 1e-9)
	assert.Equal(t, 4096, req.Params.MaxTokens)
	assert.Equal(t, defaults.ModelID, req.ModelID)
}

func TestFromValuesErrors(t *testing.T) {
	_, err := FromValues(url.Values{}, defaults)
	assert.Equal(t, http.StatusBadRequest, core.StatusCode(err))

	_, err = FromValues(url.Values{"q": {"x"}, "k": {"many"}}, defaults)
	assert.Equal(t, http.StatusBadRequest, core.StatusCode(err))
}

func TestFromJSONPostAndDirect(t *testing.T) {
	req, err := FromJSON([]byte(`{"query":"what","top_k":"2","hybrid":false,"model":"amazon.titan-text-express-v1"}`), defaults)
	require.NoError(t, err)
	assert.Equal(t, "what", req.Query)
	assert.Equal(t, 2, req.TopK)
	assert.False(t, req.Hybrid)
	assert.True(t, req.IncludeSources)
	assert.Equal(t, "amazon.titan-text-express-v1", req.ModelID)

	req, err = FromJSON([]byte(`{"querytext":"direct","max_tokens":128,"top_p":0.5}`), defaults)
	require.NoError(t, err)
	assert.Equal(t, "direct", req.Query)
	assert.Equal(t, 128, req.Params.MaxTokens)
	assert.InDelta(t, 0.5, req.Params.TopP, 1e-9)
	assert.True(t, req.Hybrid)
}

func TestFromJSONErrors(t *testing.T) {
	_, err := FromJSON([]byte(`{"query":""}`), defaults)
	assert.Equal(t, http.StatusBadRequest, core.StatusCode(err))

	_, err = FromJSON([]byte(`not json`), defaults)
	assert.Equal(t, http.StatusBadRequest, core.StatusCode(err))

	_, err = FromJSON([]byte(`{"query":"x","top_k":"lots"}`), defaults)
	assert.Equal(t, http.StatusBadRequest, core.StatusCode(err))
}
