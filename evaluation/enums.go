package evaluation

import (
	"encoding/json"
	"fmt"
)

// EvaluationReason explains why an evaluation produced its result.
type EvaluationReason int32

const (
	UnknownEvaluationReason      EvaluationReason = 0
	FlagDisabledEvaluationReason EvaluationReason = 1
	MatchEvaluationReason        EvaluationReason = 2
	DefaultEvaluationReason      EvaluationReason = 3
)

var evaluationReasonNames = map[EvaluationReason]string{
	UnknownEvaluationReason:      "UNKNOWN_EVALUATION_REASON",
	FlagDisabledEvaluationReason: "FLAG_DISABLED_EVALUATION_REASON",
	MatchEvaluationReason:        "MATCH_EVALUATION_REASON",
	DefaultEvaluationReason:      "DEFAULT_EVALUATION_REASON",
}

func (r EvaluationReason) String() string {
	return enumName(r, evaluationReasonNames, "EvaluationReason")
}

func (r EvaluationReason) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts the enum name or its number. Values this client
// does not know decode as UnknownEvaluationReason.
func (r *EvaluationReason) UnmarshalJSON(data []byte) error {
	v, ok, err := decodeEnum(data, evaluationReasonNames)
	if err != nil {
		return err
	}
	if !ok {
		v = UnknownEvaluationReason
	}
	*r = v
	return nil
}

// ErrorEvaluationReason explains why a batch item failed.
type ErrorEvaluationReason int32

const (
	UnknownErrorEvaluationReason  ErrorEvaluationReason = 0
	NotFoundErrorEvaluationReason ErrorEvaluationReason = 1
)

var errorEvaluationReasonNames = map[ErrorEvaluationReason]string{
	UnknownErrorEvaluationReason:  "UNKNOWN_ERROR_EVALUATION_REASON",
	NotFoundErrorEvaluationReason: "NOT_FOUND_ERROR_EVALUATION_REASON",
}

func (r ErrorEvaluationReason) String() string {
	return enumName(r, errorEvaluationReasonNames, "ErrorEvaluationReason")
}

func (r ErrorEvaluationReason) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *ErrorEvaluationReason) UnmarshalJSON(data []byte) error {
	v, ok, err := decodeEnum(data, errorEvaluationReasonNames)
	if err != nil {
		return err
	}
	if !ok {
		v = UnknownErrorEvaluationReason
	}
	*r = v
	return nil
}

// EvaluationResponseType is the discriminant of a batch response item.
type EvaluationResponseType int32

const (
	VariantEvaluationResponseType EvaluationResponseType = 0
	BooleanEvaluationResponseType EvaluationResponseType = 1
	ErrorEvaluationResponseType   EvaluationResponseType = 2
)

var evaluationResponseTypeNames = map[EvaluationResponseType]string{
	VariantEvaluationResponseType: "VARIANT_EVALUATION_RESPONSE_TYPE",
	BooleanEvaluationResponseType: "BOOLEAN_EVALUATION_RESPONSE_TYPE",
	ErrorEvaluationResponseType:   "ERROR_EVALUATION_RESPONSE_TYPE",
}

func (t EvaluationResponseType) String() string {
	return enumName(t, evaluationResponseTypeNames, "EvaluationResponseType")
}

func (t EvaluationResponseType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON rejects unknown discriminants: without a known tag no payload
// can be selected.
func (t *EvaluationResponseType) UnmarshalJSON(data []byte) error {
	v, ok, err := decodeEnum(data, evaluationResponseTypeNames)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("unknown evaluation response type %s", data)
	}
	*t = v
	return nil
}

// EvaluationFlagType is the kind of a flag.
type EvaluationFlagType int32

const (
	VariantFlagType EvaluationFlagType = 0
	BooleanFlagType EvaluationFlagType = 1
)

// DefaultFlagType is substituted for flag type codes this client does not know.
const DefaultFlagType = VariantFlagType

var evaluationFlagTypeNames = map[EvaluationFlagType]string{
	VariantFlagType: "VARIANT_FLAG_TYPE",
	BooleanFlagType: "BOOLEAN_FLAG_TYPE",
}

func (t EvaluationFlagType) String() string {
	return enumName(t, evaluationFlagTypeNames, "EvaluationFlagType")
}

func (t EvaluationFlagType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *EvaluationFlagType) UnmarshalJSON(data []byte) error {
	v, ok, err := decodeEnum(data, evaluationFlagTypeNames)
	if err != nil {
		return err
	}
	if !ok {
		v = DefaultFlagType
	}
	*t = v
	return nil
}

// MarshalYAML renders the flag type by name.
func (t EvaluationFlagType) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// FlagTypeFromCode maps a raw snapshot type code to a flag type, falling back
// to DefaultFlagType for codes this client does not know.
func FlagTypeFromCode(code int32) EvaluationFlagType {
	t := EvaluationFlagType(code)
	if _, ok := evaluationFlagTypeNames[t]; ok {
		return t
	}
	return DefaultFlagType
}

// FlagTypeCode is the raw type code of a snapshot flag. It decodes from
// either the enum name or its number; unrecognized names become -1 so that
// the mapping to EvaluationFlagType decides the fallback in one place.
type FlagTypeCode int32

const unknownFlagTypeCode FlagTypeCode = -1

func (c *FlagTypeCode) UnmarshalJSON(data []byte) error {
	v, ok, err := decodeEnum(data, evaluationFlagTypeNames)
	if err != nil {
		return err
	}
	if !ok && isJSONString(data) {
		*c = unknownFlagTypeCode
		return nil
	}
	*c = FlagTypeCode(v)
	return nil
}

// MarshalJSON writes known codes by name and anything else as a number.
func (c FlagTypeCode) MarshalJSON() ([]byte, error) {
	if name, ok := evaluationFlagTypeNames[EvaluationFlagType(c)]; ok {
		return json.Marshal(name)
	}
	return json.Marshal(int32(c))
}

func enumName[E ~int32](v E, names map[E]string, typeName string) string {
	if name, ok := names[v]; ok {
		return name
	}
	return fmt.Sprintf("%s(%d)", typeName, int32(v))
}

// decodeEnum reads an enum encoded as its name or its number. ok reports
// whether the value is one of names; for unknown numbers v still carries
// the raw number.
func decodeEnum[E ~int32](data []byte, names map[E]string) (v E, ok bool, err error) {
	if isJSONString(data) {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return 0, false, err
		}
		for value, n := range names {
			if n == name {
				return value, true, nil
			}
		}
		return 0, false, nil
	}

	if string(data) == "null" {
		return 0, true, nil
	}

	var num int32
	if err := json.Unmarshal(data, &num); err != nil {
		return 0, false, fmt.Errorf("enum must be a string or an integer, got %s", data)
	}
	v = E(num)
	_, ok = names[v]
	return v, ok, nil
}

func isJSONString(data []byte) bool {
	return len(data) > 0 && data[0] == '"'
}
