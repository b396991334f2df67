package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// NewEnvelope builds an envelope around a payload struct, stamping the
// current wall clock.
func NewEnvelope(msgType, squirrelID string, seq uint64, payload any) (Envelope, error) {
	env := Envelope{
		Type:       msgType,
		SquirrelID: squirrelID,
		Timestamp:  time.Now().UnixMilli(),
		Sequence:   seq,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s payload: %w", msgType, err)
		}
		env.Data = data
	}
	return env, nil
}

// Marshal serializes an envelope into a transport frame.
func Marshal(env Envelope) ([]byte, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", env.Type, err)
	}
	return raw, nil
}
