package fact

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Envelope pairs a record with its opaque signatures. The core does not
// interpret signatures but persists and forwards them unchanged; they are
// excluded from the content hash (see DESIGN.md, Open Question 3).
type Envelope struct {
	Record     Record
	Signatures [][]byte
}

// wireScalar is the JSON-visible form of a Scalar.
type wireScalar struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

func scalarToWire(s Scalar) wireScalar {
	switch s.Kind {
	case KindString:
		return wireScalar{Kind: "string", Value: s.Str}
	case KindNumber:
		return wireScalar{Kind: "number", Value: fmt.Sprintf("%g", s.Num)}
	case KindBool:
		return wireScalar{Kind: "bool", Value: fmt.Sprintf("%v", s.Bool)}
	case KindTime:
		return wireScalar{Kind: "time", Value: s.Time.UTC().Format(time.RFC3339Nano)}
	default:
		return wireScalar{}
	}
}

func scalarFromWire(w wireScalar) (Scalar, error) {
	switch w.Kind {
	case "string":
		return StringValue(w.Value), nil
	case "number":
		var n float64
		if _, err := fmt.Sscanf(w.Value, "%g", &n); err != nil {
			return Scalar{}, fmt.Errorf("fact: invalid number scalar %q: %w", w.Value, err)
		}
		return NumberValue(n), nil
	case "bool":
		return BoolValue(w.Value == "true"), nil
	case "time":
		t, err := time.Parse(time.RFC3339Nano, w.Value)
		if err != nil {
			return Scalar{}, fmt.Errorf("fact: invalid time scalar %q: %w", w.Value, err)
		}
		return TimeValue(t), nil
	default:
		return Scalar{}, fmt.Errorf("fact: unknown scalar kind %q", w.Kind)
	}
}

type wireRecord struct {
	Type         string                     `json:"type"`
	Hash         string                     `json:"hash"`
	Predecessors map[string]json.RawMessage `json:"predecessors"`
	Fields       map[string]wireScalar      `json:"fields"`
}

type wireEnvelope struct {
	wireRecord
	Signatures []string `json:"signatures,omitempty"`
}

// MarshalJSON encodes the canonical wire layout:
// { type, hash, predecessors: { role: ref | [ref,...] }, fields: { name: scalar } }.
func (e Envelope) MarshalJSON() ([]byte, error) {
	w := wireEnvelope{
		wireRecord: wireRecord{
			Type:         e.Record.Type,
			Hash:         e.Record.Hash,
			Predecessors: make(map[string]json.RawMessage, len(e.Record.Predecessors)),
			Fields:       make(map[string]wireScalar, len(e.Record.Fields)),
		},
	}
	for role, pv := range e.Record.Predecessors {
		var raw json.RawMessage
		var err error
		if pv.Multi {
			raw, err = json.Marshal(pv.Refs)
		} else {
			raw, err = json.Marshal(pv.First())
		}
		if err != nil {
			return nil, err
		}
		w.Predecessors[role] = raw
	}
	for name, s := range e.Record.Fields {
		w.Fields[name] = scalarToWire(s)
	}
	for _, sig := range e.Signatures {
		w.Signatures = append(w.Signatures, base64.StdEncoding.EncodeToString(sig))
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes an envelope from its wire layout.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	predecessors := make(map[string]PredecessorValue, len(w.Predecessors))
	for role, raw := range w.Predecessors {
		var asList []Reference
		if err := json.Unmarshal(raw, &asList); err == nil {
			predecessors[role] = List(asList...)
			continue
		}
		var asSingle Reference
		if err := json.Unmarshal(raw, &asSingle); err != nil {
			return fmt.Errorf("fact: predecessor %q neither ref nor ref list: %w", role, err)
		}
		predecessors[role] = Single(asSingle)
	}

	fields := make(map[string]Scalar, len(w.Fields))
	for name, wv := range w.Fields {
		s, err := scalarFromWire(wv)
		if err != nil {
			return err
		}
		fields[name] = s
	}

	var signatures [][]byte
	for _, s := range w.Signatures {
		sig, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("fact: invalid signature encoding: %w", err)
		}
		signatures = append(signatures, sig)
	}

	e.Record = Record{
		Type:         w.Type,
		Hash:         w.Hash,
		Predecessors: predecessors,
		Fields:       fields,
	}
	e.Signatures = signatures
	return nil
}

// Reference returns the reference identifying this envelope's record.
func (e Envelope) Reference() Reference {
	return e.Record.Reference()
}
