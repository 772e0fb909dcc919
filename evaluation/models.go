package evaluation

// EvaluationRequest asks for the evaluation of one flag for one entity.
//
// RequestID and Reference are optional: the empty string means unset and the
// field is omitted from the request body.
type EvaluationRequest struct {
	RequestID    string            `json:"requestId,omitempty" yaml:"request_id,omitempty"`
	NamespaceKey string            `json:"namespaceKey" yaml:"namespace_key"`
	FlagKey      string            `json:"flagKey" yaml:"flag_key"`
	EntityID     string            `json:"entityId" yaml:"entity_id"`
	Context      map[string]string `json:"context,omitempty" yaml:"context,omitempty"`
	Reference    string            `json:"reference,omitempty" yaml:"reference,omitempty"`
}

// BatchEvaluationRequest evaluates several flags in one exchange. The
// response lists one item per request, in request order.
type BatchEvaluationRequest struct {
	RequestID string              `json:"requestId,omitempty" yaml:"request_id,omitempty"`
	Requests  []EvaluationRequest `json:"requests" yaml:"requests"`
	Reference string              `json:"reference,omitempty" yaml:"reference,omitempty"`
}

// BooleanEvaluationResponse is the result of evaluating a boolean flag.
type BooleanEvaluationResponse struct {
	RequestID             string           `json:"requestId,omitempty"`
	Enabled               bool             `json:"enabled"`
	FlagKey               string           `json:"flagKey"`
	Reason                EvaluationReason `json:"reason"`
	RequestDurationMillis float64          `json:"requestDurationMillis"`
	Timestamp             string           `json:"timestamp"`
}

// VariantEvaluationResponse is the result of evaluating a variant flag.
type VariantEvaluationResponse struct {
	RequestID             string           `json:"requestId,omitempty"`
	Match                 bool             `json:"match"`
	VariantKey            string           `json:"variantKey"`
	VariantAttachment     string           `json:"variantAttachment,omitempty"`
	Reason                EvaluationReason `json:"reason"`
	FlagKey               string           `json:"flagKey"`
	SegmentKeys           []string         `json:"segmentKeys"`
	RequestDurationMillis float64          `json:"requestDurationMillis"`
	Timestamp             string           `json:"timestamp"`
}

// ErrorEvaluationResponse is a failed item within a batch response.
type ErrorEvaluationResponse struct {
	FlagKey      string                `json:"flagKey"`
	NamespaceKey string                `json:"namespaceKey"`
	Reason       ErrorEvaluationReason `json:"reason"`
}

// BatchEvaluationResponse holds one item per submitted request, index for index.
type BatchEvaluationResponse struct {
	RequestID             string               `json:"requestId,omitempty"`
	Responses             []EvaluationResponse `json:"responses"`
	RequestDurationMillis float64              `json:"requestDurationMillis"`
}

// EvaluationNamespaceSnapshotRequest selects the namespace to export.
// An empty Reference means no reference.
type EvaluationNamespaceSnapshotRequest struct {
	Key       string
	Reference string
}

// Flag is the client-facing summary of a snapshot flag.
type Flag struct {
	Key         string             `json:"key" yaml:"key"`
	Name        string             `json:"name,omitempty" yaml:"name,omitempty"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled     bool               `json:"enabled" yaml:"enabled"`
	Type        EvaluationFlagType `json:"type" yaml:"type"`
}
