package streamobject

import (
	"encoding/json"
	"fmt"

	"github.com/xraph/streamobject/provider"
)

// ModePreference is the caller-facing mode selector; "auto" defers to the
// provider's advertised default.
type ModePreference string

const (
	ModeAuto ModePreference = "auto"
	ModeJSON ModePreference = "json"
	ModeTool ModePreference = "tool"
)

// adaptedMode is the provider-facing mode descriptor plus the
// system message (if any) the engine must inject ahead of the caller's
// own messages.
type adaptedMode struct {
	providerMode   provider.Mode
	injectedSystem string
	resolvedKind   provider.ModeKind
}

// buildModeAdapter resolves a caller's mode preference against the
// provider's capabilities and the output strategy's shape, and produces
// the provider call's mode plus any system-message injection. It rejects
// shape/mode combinations that cannot be represented.
func buildModeAdapter(pref ModePreference, shape Shape, name, description string, schema map[string]any, info provider.Info) (*adaptedMode, error) {
	kind := resolveModeKind(pref, info)

	if kind == provider.ModeObjectTool && shape == ShapeNoSchema {
		return nil, newInvalidArgument("no-schema output is not supported in tool mode")
	}

	switch kind {
	case provider.ModeObjectTool:
		return buildToolMode(name, description, schema), nil
	default:
		return buildJSONMode(name, description, schema, info.SupportsStructuredOutputs), nil
	}
}

func resolveModeKind(pref ModePreference, info provider.Info) provider.ModeKind {
	switch pref {
	case ModeJSON:
		return provider.ModeObjectJSON
	case ModeTool:
		return provider.ModeObjectTool
	default:
		if info.DefaultObjectGenerationMode != "" {
			return info.DefaultObjectGenerationMode
		}
		return provider.ModeObjectJSON
	}
}

func buildJSONMode(name, description string, schema map[string]any, supportsStructuredOutputs bool) *adaptedMode {
	m := provider.Mode{
		Kind: provider.ModeObjectJSON,
		ObjectJSON: &provider.ObjectJSONMode{
			Name:        name,
			Description: description,
			Schema:      schema,
		},
	}

	if supportsStructuredOutputs {
		return &adaptedMode{providerMode: m, resolvedKind: provider.ModeObjectJSON}
	}

	var system string
	if schema == nil {
		system = "You MUST answer with JSON."
	} else {
		schemaJSON, _ := json.Marshal(schema)
		system = fmt.Sprintf("JSON schema:\n%s\nYou MUST answer with a JSON object that matches the JSON schema above.", schemaJSON)
	}
	return &adaptedMode{providerMode: m, injectedSystem: system, resolvedKind: provider.ModeObjectJSON}
}

func buildToolMode(name, description string, schema map[string]any) *adaptedMode {
	toolName := name
	if toolName == "" {
		toolName = "json"
	}
	toolDescription := description
	if toolDescription == "" {
		toolDescription = "Respond with a JSON object."
	}

	m := provider.Mode{
		Kind: provider.ModeObjectTool,
		ObjectTool: &provider.ObjectToolMode{
			Tool: provider.ToolDefinition{
				Type:        "function",
				Name:        toolName,
				Description: toolDescription,
				Parameters:  schema,
			},
		},
	}
	return &adaptedMode{providerMode: m, resolvedKind: provider.ModeObjectTool}
}

// textDeltaContribution extracts the bytes a fragment contributes to the
// rolling text buffer, given the resolved mode. In json mode this is the
// fragment's own text-delta; in tool mode it's the matching tool call's
// argument delta. Bare text-delta fragments in tool mode are ignored.
func textDeltaContribution(kind provider.ModeKind, frag provider.Fragment) (string, bool) {
	switch kind {
	case provider.ModeObjectTool:
		if frag.Type == provider.FragmentToolCallDelta && frag.ToolCallDelta != nil {
			return frag.ToolCallDelta.ArgsTextDelta, true
		}
		return "", false
	default: // ModeObjectJSON
		if frag.Type == provider.FragmentTextDelta {
			return frag.TextDelta, true
		}
		return "", false
	}
}
