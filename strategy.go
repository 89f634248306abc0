package streamobject

import (
	"fmt"

	errs "github.com/xraph/go-utils/errs"

	"github.com/xraph/streamobject/internal/partialjson"
)

// Shape is the caller-facing output contract.
type Shape string

const (
	ShapeObject   Shape = "object"
	ShapeArray    Shape = "array"
	ShapeNoSchema Shape = "no-schema"
)

// ValidateFunc validates one decoded value (the whole object for
// ShapeObject, or a single element for ShapeArray; it is not called for
// ShapeNoSchema) and returns the normalized value, or an error describing
// why it doesn't satisfy the schema.
type ValidateFunc func(value any) (any, error)

// strategy is the set of pure operations bound to a schema descriptor
// and output shape — what's sent to the provider, how a repaired partial
// maps to the caller-visible snapshot, and how the finished text is
// validated.
type strategy struct {
	shape      Shape
	userSchema map[string]any // nil for ShapeNoSchema
	validate   ValidateFunc   // nil means identity (no-schema)
}

func newStrategy(shape Shape, userSchema map[string]any, validate ValidateFunc) *strategy {
	return &strategy{shape: shape, userSchema: userSchema, validate: validate}
}

// providerSchema is the JSON Schema sent to the provider for this shape.
func (s *strategy) providerSchema() map[string]any {
	switch s.shape {
	case ShapeObject:
		return s.userSchema
	case ShapeArray:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"elements": map[string]any{
					"type":  "array",
					"items": s.userSchema,
				},
			},
			"required": []string{"elements"},
		}
	default: // ShapeNoSchema
		return nil
	}
}

// partial maps a repaired parse of the text buffer to the value that
// should be published on partialObjectStream, if any is available yet.
func (s *strategy) partial(parsed any) (value any, ok bool) {
	switch s.shape {
	case ShapeArray:
		m, isMap := parsed.(map[string]any)
		if !isMap {
			return nil, false
		}
		elements, has := m["elements"]
		if !has {
			return nil, false
		}
		return elements, true
	default: // ShapeObject, ShapeNoSchema
		if parsed == nil {
			return nil, false
		}
		return parsed, true
	}
}

// newElements implements the array-mode "look-ahead" completion rule:
// elements at indices [publishedCount, length-2] are complete because a
// later element follows them. It returns the newly-complete elements and
// the advanced publishedCount.
func (s *strategy) newElements(parsed any, publishedCount int) (fresh []any, advanced int) {
	elementsAny, ok := s.partial(parsed)
	if !ok {
		return nil, publishedCount
	}
	elements, ok := elementsAny.([]any)
	if !ok {
		return nil, publishedCount
	}

	completeBound := len(elements) - 1 // exclusive: index length-2 is the last complete one
	if completeBound <= publishedCount {
		return nil, publishedCount
	}
	return elements[publishedCount:completeBound], completeBound
}

// finalize validates the fully-accumulated text buffer against the
// strategy's shape, at call-finish time only.
func (s *strategy) finalize(text string) (any, error) {
	result := partialjson.Parse(text)
	if result.State == partialjson.StateFailed || result.Value == nil {
		return nil, errs.New("accumulated text did not parse into any JSON value")
	}

	switch s.shape {
	case ShapeArray:
		return s.finalizeArray(result.Value)
	case ShapeNoSchema:
		// Identity: no validation beyond "it parsed".
		return result.Value, nil
	default: // ShapeObject
		return s.finalizeObject(result.Value)
	}
}

func (s *strategy) finalizeObject(value any) (any, error) {
	if s.validate == nil {
		return value, nil
	}
	normalized, err := s.validate(value)
	if err != nil {
		return nil, newTypeValidation(err)
	}
	return normalized, nil
}

func (s *strategy) finalizeArray(value any) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, errs.New("root value is not an object carrying an \"elements\" array")
	}
	elementsAny, ok := m["elements"]
	if !ok {
		return nil, errs.New("root object is missing the \"elements\" array")
	}
	elements, ok := elementsAny.([]any)
	if !ok {
		return nil, errs.New("\"elements\" is not an array")
	}

	if s.validate == nil {
		return elements, nil
	}
	normalized := make([]any, len(elements))
	for i, elem := range elements {
		v, err := s.validate(elem)
		if err != nil {
			return nil, newTypeValidation(fmt.Errorf("element %d: %w", i, err))
		}
		normalized[i] = v
	}
	return normalized, nil
}
