// Package lambdafn adapts the query service and the ingestion router to
// AWS Lambda invocation payloads.
package lambdafn

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/aws/aws-lambda-go/events"

	"github.com/markdave123-py/docrag/internal/core"
	"github.com/markdave123-py/docrag/internal/core/rag"
)

var corsHeaders = map[string]string{
	"Content-Type":                 "application/json",
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
	"Access-Control-Allow-Headers": "Content-Type",
}

// Querier answers a RAG request.
type Querier interface {
	Query(ctx context.Context, req rag.Request) (*rag.Answer, error)
}

type QueryHandler struct {
	svc      Querier
	defaults rag.Defaults
}

func NewQueryHandler(svc Querier, d rag.Defaults) *QueryHandler {
	return &QueryHandler{svc: svc, defaults: d}
}

// invocation covers the three payload shapes the function accepts:
// API Gateway GET, API Gateway POST, and a direct call carrying querytext.
type invocation struct {
	HTTPMethod            string            `json:"httpMethod"`
	QueryStringParameters map[string]string `json:"queryStringParameters"`
	Body                  string            `json:"body"`
	IsBase64Encoded       bool              `json:"isBase64Encoded"`
	QueryText             string            `json:"querytext"`
}

var errInvalidFormat = &core.StatusError{Code: http.StatusBadRequest, Err: errors.New("Invalid request format")}

func (h *QueryHandler) parse(raw json.RawMessage) (rag.Request, error) {
	var inv invocation
	if err := json.Unmarshal(raw, &inv); err != nil {
		return rag.Request{}, errInvalidFormat
	}

	switch {
	case inv.HTTPMethod == http.MethodGet && len(inv.QueryStringParameters) > 0:
		v := url.Values{}
		for k, s := range inv.QueryStringParameters {
			v.Set(k, s)
		}
		return rag.FromValues(v, h.defaults)

	case inv.HTTPMethod == http.MethodPost && inv.Body != "":
		body := []byte(inv.Body)
		if inv.IsBase64Encoded {
			dec, err := base64.StdEncoding.DecodeString(inv.Body)
			if err != nil {
				return rag.Request{}, errInvalidFormat
			}
			body = dec
		}
		return rag.FromJSON(body, h.defaults)

	case inv.QueryText != "":
		return rag.FromJSON(raw, h.defaults)

	default:
		return rag.Request{}, errInvalidFormat
	}
}

// Handle never returns an error to the runtime: every failure becomes a
// response with a status code and an {"error": ...} body.
func (h *QueryHandler) Handle(ctx context.Context, raw json.RawMessage) (resp events.APIGatewayProxyResponse, err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Lambda: query handler panicked", "panic", p)
			resp = respond(http.StatusInternalServerError, errorBody(fmt.Sprintf("Internal server error: %v", p)))
			err = nil
		}
	}()

	req, perr := h.parse(raw)
	if perr != nil {
		return respond(core.StatusCode(perr), errorBody(perr.Error())), nil
	}

	ans, qerr := h.svc.Query(ctx, req)
	if qerr != nil {
		var se *core.StatusError
		if !errors.As(qerr, &se) {
			return respond(http.StatusInternalServerError, errorBody("Internal server error: "+qerr.Error())), nil
		}
		return respond(se.Code, errorBody(qerr.Error())), nil
	}
	return respond(http.StatusOK, ans), nil
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func respond(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Internal server error: encode response"}`)
	}
	return events.APIGatewayProxyResponse{StatusCode: status, Headers: corsHeaders, Body: string(body)}
}
