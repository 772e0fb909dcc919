package evaluation

import "encoding/json"

// EvaluationNamespaceSnapshot is a point-in-time export of a namespace.
//
// Only the fields the client reads are typed. Everything else the service
// sends (segments, variants, metadata, ...) is kept in Extra, so a decoded
// snapshot encodes back to an equivalent document.
type EvaluationNamespaceSnapshot struct {
	Digest    string              `json:"digest,omitempty"`
	Namespace EvaluationNamespace `json:"namespace"`
	Flags     []SnapshotFlag      `json:"flags"`

	Extra map[string]json.RawMessage `json:"-"`
}

// EvaluationNamespace identifies the namespace of a snapshot.
type EvaluationNamespace struct {
	Key string `json:"key"`

	Extra map[string]json.RawMessage `json:"-"`
}

// SnapshotFlag is a flag record as exported by the service. Rules and
// rollouts are carried verbatim; other unmodeled fields land in Extra.
type SnapshotFlag struct {
	Key         string          `json:"key"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Enabled     bool            `json:"enabled"`
	Type        FlagTypeCode    `json:"type"`
	Rules       json.RawMessage `json:"rules,omitempty"`
	Rollouts    json.RawMessage `json:"rollouts,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`

	// wireType is the type exactly as received. It is written back while
	// Type still holds the code decoded from it, so type names this client
	// does not know survive a round trip.
	wireType json.RawMessage
	wireCode FlagTypeCode
}

var (
	snapshotFields     = []string{"digest", "namespace", "flags"}
	namespaceFields    = []string{"key"}
	snapshotFlagFields = []string{"key", "name", "description", "enabled", "type", "rules", "rollouts"}
)

// ToFlag maps a raw record to a Flag. Unknown type codes become
// DefaultFlagType rather than an error.
func (f SnapshotFlag) ToFlag() Flag {
	return Flag{
		Key:         f.Key,
		Name:        f.Name,
		Description: f.Description,
		Enabled:     f.Enabled,
		Type:        FlagTypeFromCode(int32(f.Type)),
	}
}

func (s *EvaluationNamespaceSnapshot) UnmarshalJSON(data []byte) error {
	type plain EvaluationNamespaceSnapshot
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	p.Extra = unknownFields(fields, snapshotFields)
	*s = EvaluationNamespaceSnapshot(p)
	return nil
}

func (s EvaluationNamespaceSnapshot) MarshalJSON() ([]byte, error) {
	type plain EvaluationNamespaceSnapshot
	fields, err := fieldsOf(plain(s))
	if err != nil {
		return nil, err
	}
	return encodeFields(fields, s.Extra)
}

func (n *EvaluationNamespace) UnmarshalJSON(data []byte) error {
	type plain EvaluationNamespace
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	p.Extra = unknownFields(fields, namespaceFields)
	*n = EvaluationNamespace(p)
	return nil
}

func (n EvaluationNamespace) MarshalJSON() ([]byte, error) {
	type plain EvaluationNamespace
	fields, err := fieldsOf(plain(n))
	if err != nil {
		return nil, err
	}
	return encodeFields(fields, n.Extra)
}

func (f *SnapshotFlag) UnmarshalJSON(data []byte) error {
	type plain SnapshotFlag
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	fields, err := objectFields(data)
	if err != nil {
		return err
	}
	if raw, ok := fields["type"]; ok {
		p.wireType, p.wireCode = raw, p.Type
	}
	p.Extra = unknownFields(fields, snapshotFlagFields)
	*f = SnapshotFlag(p)
	return nil
}

func (f SnapshotFlag) MarshalJSON() ([]byte, error) {
	type plain SnapshotFlag
	fields, err := fieldsOf(plain(f))
	if err != nil {
		return nil, err
	}
	if f.wireType != nil && f.Type == f.wireCode {
		fields["type"] = f.wireType
	}
	return encodeFields(fields, f.Extra)
}

func objectFields(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// unknownFields removes the modeled keys from fields and returns the rest,
// or nil if nothing is left.
func unknownFields(fields map[string]json.RawMessage, known []string) map[string]json.RawMessage {
	for _, k := range known {
		delete(fields, k)
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func fieldsOf(v any) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return objectFields(data)
}

// encodeFields writes the modeled fields plus extra. Modeled fields win on
// a key collision.
func encodeFields(fields, extra map[string]json.RawMessage) ([]byte, error) {
	for k, v := range extra {
		if _, ok := fields[k]; !ok {
			fields[k] = v
		}
	}
	return json.Marshal(fields)
}
