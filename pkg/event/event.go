// Package event models the inbound CloudEvents 1.0 envelope and its
// validation. Validation is two-phase: a structural pass against an embedded
// JSON Schema for raw submissions, then a semantic pass with typed error
// codes the transport layer can map to status codes.
package event

// SpecVersion is the only CloudEvents specification version the ledger accepts.
const SpecVersion = "1.0"

// Event is a parsed CloudEvents 1.0 envelope. The envelope itself is never
// persisted; only a digest of Data plus non-sensitive metadata survives
// ingestion.
type Event struct {
	SpecVersion     string         `json:"specversion"`
	ID              string         `json:"id"`
	Source          string         `json:"source"`
	Type            string         `json:"type"`
	Subject         string         `json:"subject,omitempty"`
	Time            string         `json:"time"`
	DataContentType string         `json:"datacontenttype,omitempty"`
	DataSchema      string         `json:"dataschema,omitempty"`
	Data            any            `json:"data,omitempty"`
	Extensions      map[string]any `json:"extensions,omitempty"`
}

// EffectiveTraceID resolves the correlation key for this event: the subject
// when present, otherwise the event id.
func (e *Event) EffectiveTraceID() string {
	if e.Subject != "" {
		return e.Subject
	}
	return e.ID
}
