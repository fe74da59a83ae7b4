package rag

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/markdave123-py/docrag/internal/core"
)

// Request is a parsed query, whatever transport it arrived on.
type Request struct {
	Query          string
	TopK           int
	ModelID        string
	Hybrid         bool
	Params         core.GenerationParams
	IncludeSources bool
}

// Defaults fill in the fields a caller leaves out.
type Defaults struct {
	TopK        int
	ModelID     string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

func (d Defaults) request() Request {
	topK := d.TopK
	if topK <= 0 {
		topK = 5
	}
	return Request{
		TopK:           topK,
		ModelID:        d.ModelID,
		Hybrid:         true,
		IncludeSources: true,
		Params:         core.GenerationParams{MaxTokens: d.MaxTokens, Temperature: d.Temperature, TopP: d.TopP},
	}
}

var errQueryRequired = errors.New("Query text is required")

func badRequest(err error) error {
	return &core.StatusError{Code: http.StatusBadRequest, Err: err}
}

// FromValues parses GET parameters: q, k, model, hybrid, max_tokens,
// temperature, top_p, include_sources.
func FromValues(v url.Values, d Defaults) (Request, error) {
	req := d.request()
	req.Query = strings.TrimSpace(v.Get("q"))

	var err error
	if s := v.Get("k"); s != "" {
		if req.TopK, err = strconv.Atoi(s); err != nil {
			return Request{}, badRequest(fmt.Errorf("invalid k %q", s))
		}
	}
	if s := v.Get("model"); s != "" {
		req.ModelID = s
	}
	if s := v.Get("hybrid"); s != "" {
		req.Hybrid = strings.EqualFold(s, "true")
	}
	if s := v.Get("include_sources"); s != "" {
		req.IncludeSources = strings.EqualFold(s, "true")
	}
	if s := v.Get("max_tokens"); s != "" {
		if req.Params.MaxTokens, err = strconv.Atoi(s); err != nil {
			return Request{}, badRequest(fmt.Errorf("invalid max_tokens %q", s))
		}
	}
	if s := v.Get("temperature"); s != "" {
		if req.Params.Temperature, err = strconv.ParseFloat(s, 64); err != nil {
			return Request{}, badRequest(fmt.Errorf("invalid temperature %q", s))
		}
	}
	if s := v.Get("top_p"); s != "" {
		if req.Params.TopP, err = strconv.ParseFloat(s, 64); err != nil {
			return Request{}, badRequest(fmt.Errorf("invalid top_p %q", s))
		}
	}
	if req.Query == "" {
		return Request{}, badRequest(errQueryRequired)
	}
	return req, nil
}

// jsonRequest accepts POST bodies ("query") and direct invocations
// ("querytext"). Numbers and booleans may also arrive as strings.
type jsonRequest struct {
	Query          *string   `json:"query"`
	QueryText      *string   `json:"querytext"`
	TopK           *flexNum  `json:"top_k"`
	Model          *string   `json:"model"`
	Hybrid         *flexBool `json:"hybrid"`
	MaxTokens      *flexNum  `json:"max_tokens"`
	Temperature    *flexNum  `json:"temperature"`
	TopP           *flexNum  `json:"top_p"`
	IncludeSources *flexBool `json:"include_sources"`
}

// FromJSON parses a POST body or a direct invocation payload.
func FromJSON(body []byte, d Defaults) (Request, error) {
	var in jsonRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&in); err != nil {
		return Request{}, badRequest(fmt.Errorf("invalid request body: %w", err))
	}

	req := d.request()
	switch {
	case in.Query != nil:
		req.Query = strings.TrimSpace(*in.Query)
	case in.QueryText != nil:
		req.Query = strings.TrimSpace(*in.QueryText)
	}
	if in.TopK != nil {
		req.TopK = int(*in.TopK)
	}
	if in.Model != nil && *in.Model != "" {
		req.ModelID = *in.Model
	}
	if in.Hybrid != nil {
		req.Hybrid = bool(*in.Hybrid)
	}
	if in.IncludeSources != nil {
		req.IncludeSources = bool(*in.IncludeSources)
	}
	if in.MaxTokens != nil {
		req.Params.MaxTokens = int(*in.MaxTokens)
	}
	if in.Temperature != nil {
		req.Params.Temperature = float64(*in.Temperature)
	}
	if in.TopP != nil {
		req.Params.TopP = float64(*in.TopP)
	}
	if req.Query == "" {
		return Request{}, badRequest(errQueryRequired)
	}
	return req, nil
}

type flexNum float64

func (f *flexNum) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	*f = flexNum(v)
	return nil
}

type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("not a boolean: %s", b)
	}
	*f = flexBool(v)
	return nil
}
