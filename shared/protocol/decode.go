package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oakgrove/scamper-mp/shared/gamemath"
)

// Boundary rejection errors. Handlers filter on these instead of string
// matching.
var (
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	ErrUnknownType    = errors.New("protocol: unknown message type")
	ErrInvalidPayload = errors.New("protocol: invalid payload")
)

// Message is a decoded frame: the envelope metadata plus a typed payload.
// Payload is always one of the *Payload structs from this package.
type Message struct {
	Type       string
	SquirrelID string
	Timestamp  int64
	Sequence   uint64
	Payload    any
}

// Decode parses a raw transport frame into a typed Message. Frames with an
// unknown type or a payload that does not match the type's schema are
// rejected here, before they can reach game logic.
func Decode(raw []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return DecodeEnvelope(env)
}

// DecodeEnvelope resolves an already-parsed envelope into a typed Message.
// Used both for top-level frames and for envelopes nested inside a batch.
func DecodeEnvelope(env Envelope) (Message, error) {
	msg := Message{
		Type:       env.Type,
		SquirrelID: env.SquirrelID,
		Timestamp:  env.Timestamp,
		Sequence:   env.Sequence,
	}

	var err error
	switch env.Type {
	case TypeJoin:
		payload := JoinPayload{}
		err = unmarshalPayload(env.Data, &payload)
		msg.Payload = payload
	case TypePlayerState:
		payload := PlayerStatePayload{}
		if err = unmarshalPayload(env.Data, &payload); err == nil {
			err = validatePose(payload.Position, payload.Rotation, payload.Velocity)
		}
		msg.Payload = payload
	case TypePlayerUpdate, TypePositionUpdate:
		msg.Type = TypePlayerUpdate
		payload := PlayerUpdatePayload{}
		if err = unmarshalPayload(env.Data, &payload); err == nil {
			err = validatePose(payload.Position, payload.Rotation, payload.Velocity)
		}
		msg.Payload = payload
	case TypeWelcome:
		payload := WelcomePayload{}
		if err = unmarshalPayload(env.Data, &payload); err == nil && payload.SquirrelID == "" {
			err = fmt.Errorf("%w: welcome without squirrelId", ErrInvalidPayload)
		}
		msg.Payload = payload
	case TypePlayerJoined:
		payload := PlayerJoinedPayload{}
		if err = unmarshalPayload(env.Data, &payload); err == nil {
			err = validatePose(payload.Position, payload.Rotation, nil)
		}
		msg.Payload = payload
	case TypePlayerLeft:
		payload := PlayerLeftPayload{}
		err = unmarshalPayload(env.Data, &payload)
		msg.Payload = payload
	case TypeExistingPlayers:
		payload := ExistingPlayersPayload{}
		err = unmarshalPayload(env.Data, &payload)
		msg.Payload = payload
	case TypeWorldState:
		payload := WorldStatePayload{}
		err = unmarshalPayload(env.Data, &payload)
		msg.Payload = payload
	case TypeHeartbeat:
		msg.Payload = HeartbeatPayload{}
	case TypeError:
		payload := ErrorPayload{}
		err = unmarshalPayload(env.Data, &payload)
		msg.Payload = payload
	case TypeBatch:
		payload := BatchPayload{}
		err = unmarshalPayload(env.Data, &payload)
		msg.Payload = payload
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

func unmarshalPayload(data json.RawMessage, out any) error {
	if len(data) == 0 {
		// Messages like heartbeat and player_left legitimately carry no
		// data; structs keep their zero values.
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// maxCoordinate is a structural sanity bound, far outside any legal world.
// Finer bounds checks belong to the server's movement validation.
const maxCoordinate = 1e6

func validatePose(pos Vec, rot float64, vel *Vec) error {
	p := pos.ToVec3()
	if !p.IsFinite() || !gamemath.IsFinite(rot) {
		return fmt.Errorf("%w: non-finite pose", ErrInvalidPayload)
	}
	if p.Length() > maxCoordinate {
		return fmt.Errorf("%w: position out of range", ErrInvalidPayload)
	}
	if vel != nil && !vel.ToVec3().IsFinite() {
		return fmt.Errorf("%w: non-finite velocity", ErrInvalidPayload)
	}
	return nil
}

// ToVec3 converts a wire vector to world math.
func (v Vec) ToVec3() gamemath.Vec3 {
	return gamemath.Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

// FromVec3 converts a world vector to the wire format.
func FromVec3(v gamemath.Vec3) Vec {
	return Vec{X: v.X, Y: v.Y, Z: v.Z}
}
