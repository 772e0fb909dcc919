package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ResponsePayload is implemented by the three payloads a batch item can carry:
// *BooleanEvaluationResponse, *VariantEvaluationResponse and
// *ErrorEvaluationResponse. The set is closed.
type ResponsePayload interface {
	ResponseType() EvaluationResponseType
	isResponsePayload()
}

func (*BooleanEvaluationResponse) ResponseType() EvaluationResponseType {
	return BooleanEvaluationResponseType
}

func (*VariantEvaluationResponse) ResponseType() EvaluationResponseType {
	return VariantEvaluationResponseType
}

func (*ErrorEvaluationResponse) ResponseType() EvaluationResponseType {
	return ErrorEvaluationResponseType
}

func (*BooleanEvaluationResponse) isResponsePayload() {}
func (*VariantEvaluationResponse) isResponsePayload() {}
func (*ErrorEvaluationResponse) isResponsePayload()   {}

// EvaluationResponse is one item of a batch response: a type tag with exactly
// one payload. The tag is derived from the payload, so the two cannot
// disagree. Switch on Type, or on Payload with a type switch:
//
//	switch p := item.Payload().(type) {
//	case *evaluation.VariantEvaluationResponse:
//	case *evaluation.BooleanEvaluationResponse:
//	case *evaluation.ErrorEvaluationResponse:
//	}
//
// The zero value carries no payload.
type EvaluationResponse struct {
	payload ResponsePayload
}

// NewBooleanItem wraps a boolean result as a batch item.
func NewBooleanItem(r *BooleanEvaluationResponse) EvaluationResponse {
	return EvaluationResponse{payload: r}
}

// NewVariantItem wraps a variant result as a batch item.
func NewVariantItem(r *VariantEvaluationResponse) EvaluationResponse {
	return EvaluationResponse{payload: r}
}

// NewErrorItem wraps a per-item failure as a batch item.
func NewErrorItem(r *ErrorEvaluationResponse) EvaluationResponse {
	return EvaluationResponse{payload: r}
}

// Type returns the discriminant. For the zero value it returns
// ErrorEvaluationResponseType, and ErrorResponse reports false.
func (r EvaluationResponse) Type() EvaluationResponseType {
	if r.payload == nil {
		return ErrorEvaluationResponseType
	}
	return r.payload.ResponseType()
}

// Payload returns the populated payload, or nil for the zero value.
func (r EvaluationResponse) Payload() ResponsePayload {
	return r.payload
}

// BooleanResponse returns the payload if the item is Boolean-typed.
func (r EvaluationResponse) BooleanResponse() (*BooleanEvaluationResponse, bool) {
	p, ok := r.payload.(*BooleanEvaluationResponse)
	return p, ok && p != nil
}

// VariantResponse returns the payload if the item is Variant-typed.
func (r EvaluationResponse) VariantResponse() (*VariantEvaluationResponse, bool) {
	p, ok := r.payload.(*VariantEvaluationResponse)
	return p, ok && p != nil
}

// ErrorResponse returns the payload if the item is Error-typed.
func (r EvaluationResponse) ErrorResponse() (*ErrorEvaluationResponse, bool) {
	p, ok := r.payload.(*ErrorEvaluationResponse)
	return p, ok && p != nil
}

// FlagKey returns the flag key of whichever payload is populated.
func (r EvaluationResponse) FlagKey() string {
	switch p := r.payload.(type) {
	case *BooleanEvaluationResponse:
		return p.FlagKey
	case *VariantEvaluationResponse:
		return p.FlagKey
	case *ErrorEvaluationResponse:
		return p.FlagKey
	}
	return ""
}

type wireEvaluationResponse struct {
	Type            EvaluationResponseType     `json:"type"`
	BooleanResponse *BooleanEvaluationResponse `json:"booleanResponse,omitempty"`
	VariantResponse *VariantEvaluationResponse `json:"variantResponse,omitempty"`
	ErrorResponse   *ErrorEvaluationResponse   `json:"errorResponse,omitempty"`
}

var errEmptyEvaluationResponse = errors.New("evaluation response has no payload")

func (r EvaluationResponse) MarshalJSON() ([]byte, error) {
	w := wireEvaluationResponse{}
	switch p := r.payload.(type) {
	case *BooleanEvaluationResponse:
		w.Type, w.BooleanResponse = BooleanEvaluationResponseType, p
	case *VariantEvaluationResponse:
		w.Type, w.VariantResponse = VariantEvaluationResponseType, p
	case *ErrorEvaluationResponse:
		w.Type, w.ErrorResponse = ErrorEvaluationResponseType, p
	default:
		return nil, errEmptyEvaluationResponse
	}
	return json.Marshal(w)
}

// UnmarshalJSON requires the payload named by the tag to be present and every
// other payload to be absent.
func (r *EvaluationResponse) UnmarshalJSON(data []byte) error {
	var w wireEvaluationResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	populated := 0
	for _, present := range []bool{w.BooleanResponse != nil, w.VariantResponse != nil, w.ErrorResponse != nil} {
		if present {
			populated++
		}
	}
	if populated > 1 {
		return fmt.Errorf("evaluation response of type %s carries %d payloads", w.Type, populated)
	}

	var payload ResponsePayload
	switch w.Type {
	case BooleanEvaluationResponseType:
		if w.BooleanResponse != nil {
			payload = w.BooleanResponse
		}
	case VariantEvaluationResponseType:
		if w.VariantResponse != nil {
			payload = w.VariantResponse
		}
	case ErrorEvaluationResponseType:
		if w.ErrorResponse != nil {
			payload = w.ErrorResponse
		}
	}
	if payload == nil {
		return fmt.Errorf("evaluation response of type %s has no matching payload", w.Type)
	}

	r.payload = payload
	return nil
}
