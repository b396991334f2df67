package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/oakgrove/scamper-mp/shared/encoding"
)

// ExpandBatch returns the member envelopes of a batch payload, reversing
// the run-length pass when present.
func ExpandBatch(p BatchPayload) ([]Envelope, error) {
	switch p.Encoding {
	case "":
		return p.Messages, nil
	case "rle":
		raw, err := encoding.DecodeRLE(p.Blob)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		var msgs []Envelope
		if err := json.Unmarshal(raw, &msgs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return msgs, nil
	default:
		return nil, fmt.Errorf("%w: batch encoding %q", ErrMalformedFrame, p.Encoding)
	}
}
