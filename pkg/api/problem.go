// Package api is the HTTP boundary of the receipt ledger. It maps transport
// concerns onto the ingestion service: envelope parsing, RFC 7807 Problem
// Detail error responses, trace correlation and request spans.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ocn-ai/weave/pkg/logging"
)

// ProblemDetail implements RFC 7807 (Problem Details for HTTP APIs).
// All API error responses use this format.
type ProblemDetail struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`
	// Status is the HTTP status code.
	Status int `json:"status"`
	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`
	// Code carries the ledger's machine-readable error code, when one exists.
	Code string `json:"code,omitempty"`
	// TraceID links the response to the request's correlation key.
	TraceID string `json:"trace_id,omitempty"`
}

// Error implements the error interface.
func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// WriteProblem writes an RFC 7807 response enriched with the request's trace id.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, title, detail, code string) {
	problem := &ProblemDetail{
		Type:    fmt.Sprintf("https://ocn.ai/weave/errors/%d", status),
		Title:   title,
		Status:  status,
		Detail:  detail,
		Code:    code,
		TraceID: logging.TraceID(r.Context()),
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// writeJSON writes a success payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
