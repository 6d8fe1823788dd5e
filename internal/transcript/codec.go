package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownKind is returned by Decode for records whose type is not modelled.
var ErrUnknownKind = errors.New("unknown transcript entry type")

// Encode serializes an entry into its JSON record form. The "type" field is
// always written from the entry's Kind.
func Encode(e Entry) (json.RawMessage, error) {
	var v any
	switch t := e.(type) {
	case *UserEntry:
		c := *t
		c.Type = KindUser
		v = &c
	case *AssistantEntry:
		c := *t
		c.Type = KindAssistant
		v = &c
	case *SummaryEntry:
		c := *t
		c.Type = KindSummary
		v = &c
	default:
		return nil, fmt.Errorf("encoding %T: %w", e, ErrUnknownKind)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s entry: %w", e.Kind(), err)
	}
	return b, nil
}

// Decode parses one JSON record into the entry type named by its "type" field.
func Decode(raw []byte) (Entry, error) {
	var e Entry
	switch Probe(raw) {
	case KindUser:
		e = &UserEntry{}
	case KindAssistant:
		e = &AssistantEntry{}
	case KindSummary:
		e = &SummaryEntry{}
	default:
		return nil, ErrUnknownKind
	}
	if err := json.Unmarshal(raw, e); err != nil {
		return nil, fmt.Errorf("decoding %s entry: %w", e.Kind(), err)
	}
	return e, nil
}
