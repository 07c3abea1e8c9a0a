package domain

import (
	"bytes"
	"encoding/json"
)

// Encode renders msg for the wire without HTML escaping. Offer, answer and
// candidate payloads are copied byte for byte.
func Encode(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	field, raw, ok := payloadOf(msg)
	if !ok {
		if err := enc.Encode(msg); err != nil {
			return nil, err
		}
		return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
	}

	// The header always has "type", so it never encodes as an empty object.
	if err := enc.Encode(msg.Header()); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	out := bytes.TrimSuffix(buf.Bytes(), []byte("}\n"))
	out = append(out, `,"`+field+`":`...)
	out = append(out, raw...)
	return append(out, '}'), nil
}

func payloadOf(msg Message) (string, json.RawMessage, bool) {
	switch m := msg.(type) {
	case Offer:
		return "offer", m.Offer, true
	case Answer:
		return "answer", m.Answer, true
	case ICECandidate:
		return "candidate", m.Candidate, true
	}
	return "", nil, false
}
