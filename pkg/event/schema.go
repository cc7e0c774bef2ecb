package event

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CodeMalformedEnvelope marks raw submissions that are not even shaped like a
// CloudEvent (wrong JSON type, non-string attribute, unparseable body).
const CodeMalformedEnvelope = "MALFORMED_ENVELOPE"

// schemaJSON is the structural contract for inbound envelopes. Semantic rules
// (specversion value, type allow-list, timestamp parse) live in Validator;
// the schema only pins JSON shape.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://ocn.ai/schemas/cloudevent-1.0.json",
  "title": "CloudEvent envelope",
  "type": "object",
  "required": ["specversion", "id", "source", "type", "time"],
  "properties": {
    "specversion": {"type": "string"},
    "id": {"type": "string"},
    "source": {"type": "string"},
    "type": {"type": "string"},
    "subject": {"type": "string"},
    "time": {"type": "string"},
    "datacontenttype": {"type": "string"},
    "dataschema": {"type": "string"},
    "data": {},
    "extensions": {"type": "object"}
  }
}`

var envelopeSchema = jsonschema.MustCompileString("cloudevent-1.0.json", schemaJSON)

// ParseEnvelope decodes a raw JSON submission into an Event after checking it
// against the envelope schema. Payload numbers are decoded as json.Number so
// the canonical digest sees the producer's exact textual form.
func ParseEnvelope(raw []byte) (*Event, error) {
	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, &ValidationError{
			Field:   "envelope",
			Code:    CodeMalformedEnvelope,
			Message: fmt.Sprintf("body is not valid JSON: %v", err),
		}
	}

	if err := envelopeSchema.Validate(generic); err != nil {
		return nil, &ValidationError{
			Field:   "envelope",
			Code:    CodeMalformedEnvelope,
			Message: fmt.Sprintf("envelope does not match the CloudEvents schema: %v", err),
		}
	}

	var ev Event
	dec = json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&ev); err != nil {
		return nil, &ValidationError{
			Field:   "envelope",
			Code:    CodeMalformedEnvelope,
			Message: fmt.Sprintf("envelope decode failed: %v", err),
		}
	}
	return &ev, nil
}
