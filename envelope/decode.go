package envelope

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/ripestream/types"
)

// MessageKind is the transport framing of an inbound message.
type MessageKind int

const (
	// KindText is a UTF-8 text message (JSON).
	KindText MessageKind = iota
	// KindBinary is a binary message (msgpack).
	KindBinary
)

func (k MessageKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DecodeErrorKind classifies decode failures.
type DecodeErrorKind int

const (
	// MalformedPayload indicates the message could not be normalized into a
	// structured value, or a classified payload did not fit the typed model.
	MalformedPayload DecodeErrorKind = iota
)

// ErrMalformedPayload is the sentinel matched by every *DecodeError.
var ErrMalformedPayload = errors.New("malformed payload")

// DecodeError reports a message that could not be decoded.
type DecodeError struct {
	Kind DecodeErrorKind
	Msg  string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrMalformedPayload) hold for malformed payloads.
func (e *DecodeError) Is(target error) bool {
	return target == ErrMalformedPayload && e.Kind == MalformedPayload
}

// Decode normalizes raw into a structured value and classifies it.
//
// Returns:
//   - (Envelope, nil) when the message matches one of the three shapes
//   - (nil, nil) when the message is structured but matches none of them
//   - (nil, *DecodeError) when the message cannot be normalized
func Decode(kind MessageKind, raw []byte) (Envelope, error) {
	value, err := normalize(kind, raw)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	return DecodeValue(value)
}

// DecodeValue classifies an already structured message.
func DecodeValue(value map[string]any) (Envelope, error) {
	switch value["type"] {
	case string(TypeFrame):
		result, ok := asStringMap(value["result"])
		if !ok {
			return nil, nil
		}
		var fr types.FrameResult
		if err := convert(result, &fr); err != nil {
			return nil, malformed("invalid frame result", err)
		}
		if err := fr.Validate(); err != nil {
			return nil, malformed("invalid frame result", err)
		}
		return &Frame{
			ModelVersion:  stringField(value, "model_version"),
			SchemaVersion: stringField(value, "schema_version"),
			Result:        fr,
		}, nil

	case string(TypeSummary):
		summary, ok := asStringMap(value["summary"])
		if !ok {
			return nil, nil
		}
		var s types.SessionSummary
		if err := convert(summary, &s); err != nil {
			return nil, malformed("invalid session summary", err)
		}
		if err := s.Validate(); err != nil {
			return nil, malformed("invalid session summary", err)
		}
		return &Summary{
			ModelVersion:  stringField(value, "model_version"),
			SchemaVersion: stringField(value, "schema_version"),
			Summary:       s,
		}, nil

	case string(TypeError):
		detail, ok := value["detail"].(string)
		if !ok {
			return nil, nil
		}
		return &Error{Detail: detail}, nil

	default:
		return nil, nil
	}
}

// normalize turns a raw message into a generic map. A well-formed message
// that is not an object (a JSON array or number, say) normalizes to nil,
// as does binary data that does not decode as msgpack. Invalid JSON text
// is malformed.
func normalize(kind MessageKind, raw []byte) (map[string]any, error) {
	var value any
	switch kind {
	case KindText:
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, malformed("invalid JSON message", err)
		}
	case KindBinary:
		// Binary data that is not msgpack is not a message at all.
		if err := msgpack.Unmarshal(raw, &value); err != nil {
			return nil, nil
		}
	default:
		return nil, malformed(fmt.Sprintf("unsupported message kind %s", kind), nil)
	}

	m, _ := asStringMap(value)
	return m, nil
}

// asStringMap accepts the map shapes produced by encoding/json and msgpack.
func asStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// convert maps a generic nested object onto a typed struct using the JSON
// field tags, so text and binary messages share one schema definition.
func convert(src map[string]any, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func malformed(msg string, err error) *DecodeError {
	return &DecodeError{Kind: MalformedPayload, Msg: msg, Err: err}
}
