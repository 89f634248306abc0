// Package provider defines the contract this engine consumes from a
// language-model backend: a decoding mode, call options, and a doStream
// call returning an ordered fragment stream. The HTTP transport that
// implements DoStream for a concrete vendor is out of scope here — this
// package only describes the shape a provider must expose.
package provider

import "context"

// ModeKind selects the provider-facing decoding discipline.
type ModeKind string

const (
	ModeObjectJSON ModeKind = "object-json"
	ModeObjectTool ModeKind = "object-tool"
)

// ToolDefinition describes a callable tool surfaced to the model.
type ToolDefinition struct {
	Type        string // "function"
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// ObjectJSONMode configures json-mode: the provider is asked to emit JSON
// text directly, optionally guided by name/description/schema.
type ObjectJSONMode struct {
	Name        string
	Description string
	Schema      map[string]any // nil for no-schema
}

// ObjectToolMode configures tool-mode: the provider is asked to call a
// single synthetic tool whose arguments are the JSON payload.
type ObjectToolMode struct {
	Tool ToolDefinition
}

// Mode is a tagged variant over the two decoding disciplines this engine drives.
type Mode struct {
	Kind       ModeKind
	ObjectJSON *ObjectJSONMode
	ObjectTool *ObjectToolMode
}

// InputFormat tells the provider whether Prompt or Messages is populated.
type InputFormat string

const (
	InputFormatPrompt   InputFormat = "prompt"
	InputFormatMessages InputFormat = "messages"
)

// CallOptions is everything the engine hands to Provider.DoStream.
type CallOptions struct {
	Mode        Mode
	InputFormat InputFormat
	Prompt      string
	Messages    []Message

	Temperature      *float64
	TopP             *float64
	TopK             *int
	FrequencyPenalty *float64
	PresencePenalty  *float64
	StopSequences    []string
	MaxTokens        *int
	Seed             *int

	Headers          map[string]string
	ProviderMetadata map[string]any
}

// CallWarning is a non-fatal notice surfaced by the provider about the
// call it was asked to make (e.g. an unsupported setting was dropped).
type CallWarning struct {
	Type    string
	Message string
}

// RawCall captures exactly what was sent to the provider, for telemetry/debugging.
type RawCall struct {
	RawPrompt   any
	RawSettings map[string]any
}

// RawResponse captures transport-level response metadata, when available.
type RawResponse struct {
	Headers map[string]string
}

// StreamResult is what DoStream resolves to before the fragment stream is drained.
type StreamResult struct {
	Stream      <-chan Fragment
	RawCall     RawCall
	RawResponse *RawResponse
	Warnings    []CallWarning
}

// Info describes static capabilities of a provider/model pairing.
type Info struct {
	Provider                    string
	ModelID                     string
	DefaultObjectGenerationMode ModeKind
	SupportsImageURLs           bool
	SupportsStructuredOutputs   bool
}

// Provider is the external collaborator this engine drives. A concrete
// implementation owns the HTTP transport, retries, and connection pooling;
// none of that is this package's concern.
type Provider interface {
	Info() Info
	DoStream(ctx context.Context, options CallOptions) (*StreamResult, error)
}
