package streamobject

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	logger "github.com/xraph/go-utils/log"
	"github.com/xraph/go-utils/metrics"

	"github.com/xraph/streamobject/provider"
)

// ObjectStreamer is a typed fluent wrapper over Call for struct-shaped
// output: the JSON Schema is derived from T by reflection instead of
// hand-written, and the terminal value decodes straight into a T.
type ObjectStreamer[T any] struct {
	call *Call
}

// NewObjectStreamer derives a JSON Schema from T's exported fields and
// returns a builder for a single-object stream.
func NewObjectStreamer[T any](pv provider.Provider, log logger.Logger, m metrics.Metrics) (*ObjectStreamer[T], error) {
	schema, err := schemaForType(reflect.TypeFor[T]())
	if err != nil {
		return nil, fmt.Errorf("deriving schema for %T: %w", *new(T), err)
	}
	call := NewCall(pv, log, m).WithShape(ShapeObject).WithSchema(schema).WithValidate(decodeValidator[T])
	return &ObjectStreamer[T]{call: call}, nil
}

// ArrayStreamer is the array-shaped counterpart of ObjectStreamer: each
// element decodes into a T, and newly-complete elements are available on
// a typed element channel as they arrive.
type ArrayStreamer[T any] struct {
	call *Call
}

// NewArrayStreamer derives a JSON Schema for a single element of type T
// and returns a builder for an array-of-elements stream.
func NewArrayStreamer[T any](pv provider.Provider, log logger.Logger, m metrics.Metrics) (*ArrayStreamer[T], error) {
	schema, err := schemaForType(reflect.TypeFor[T]())
	if err != nil {
		return nil, fmt.Errorf("deriving schema for %T: %w", *new(T), err)
	}
	call := NewCall(pv, log, m).WithShape(ShapeArray).WithSchema(schema).WithValidate(decodeValidator[T])
	return &ArrayStreamer[T]{call: call}, nil
}

// decodeValidator is the ValidateFunc shared by both typed wrappers: it
// round-trips the decoded-JSON value through encoding/json into a T, giving
// the strategy's finalize-time validation (whole object for ObjectStreamer,
// each element for ArrayStreamer) real teeth instead of accepting anything
// that merely parsed as JSON.
func decodeValidator[T any](value any) (any, error) {
	var typed T
	if !decodeInto(value, &typed) {
		return nil, fmt.Errorf("decoding %T", typed)
	}
	return typed, nil
}

// The pass-through setters below forward to the wrapped Call, kept in the
// same terse With* shape so callers can chain exactly as they would
// against a plain Call.

func (s *ObjectStreamer[T]) WithPrompt(prompt string) *ObjectStreamer[T] {
	s.call.WithPrompt(prompt)
	return s
}

func (s *ObjectStreamer[T]) WithVar(key string, value any) *ObjectStreamer[T] {
	s.call.WithVar(key, value)
	return s
}

func (s *ObjectStreamer[T]) WithSystemPrompt(system string) *ObjectStreamer[T] {
	s.call.WithSystemPrompt(system)
	return s
}

func (s *ObjectStreamer[T]) WithMessages(history []provider.Message) *ObjectStreamer[T] {
	s.call.WithMessages(history)
	return s
}

func (s *ObjectStreamer[T]) WithMode(mode ModePreference) *ObjectStreamer[T] {
	s.call.WithMode(mode)
	return s
}

func (s *ObjectStreamer[T]) WithTemperature(v float64) *ObjectStreamer[T] {
	s.call.WithTemperature(v)
	return s
}

func (s *ObjectStreamer[T]) WithTelemetry(cfg TelemetryConfig) *ObjectStreamer[T] {
	s.call.WithTelemetry(cfg)
	return s
}

func (s *ObjectStreamer[T]) OnFinish(fn func(FinishEvent)) *ObjectStreamer[T] {
	s.call.OnFinish(fn)
	return s
}

// Start opens the stream and returns a TypedObjectResult.
func (s *ObjectStreamer[T]) Start(ctx context.Context) (*TypedObjectResult[T], error) {
	result, err := s.call.Start(ctx)
	if err != nil {
		return nil, err
	}
	return &TypedObjectResult[T]{StreamObjectResult: result}, nil
}

func (s *ArrayStreamer[T]) WithPrompt(prompt string) *ArrayStreamer[T] {
	s.call.WithPrompt(prompt)
	return s
}

func (s *ArrayStreamer[T]) WithVar(key string, value any) *ArrayStreamer[T] {
	s.call.WithVar(key, value)
	return s
}

func (s *ArrayStreamer[T]) WithSystemPrompt(system string) *ArrayStreamer[T] {
	s.call.WithSystemPrompt(system)
	return s
}

func (s *ArrayStreamer[T]) WithMode(mode ModePreference) *ArrayStreamer[T] {
	s.call.WithMode(mode)
	return s
}

func (s *ArrayStreamer[T]) WithTelemetry(cfg TelemetryConfig) *ArrayStreamer[T] {
	s.call.WithTelemetry(cfg)
	return s
}

func (s *ArrayStreamer[T]) OnFinish(fn func(FinishEvent)) *ArrayStreamer[T] {
	s.call.OnFinish(fn)
	return s
}

// Start opens the stream and returns a TypedArrayResult, whose Elements
// channel decodes each newly-complete element into a T as it arrives.
func (s *ArrayStreamer[T]) Start(ctx context.Context) (*TypedArrayResult[T], error) {
	result, err := s.call.Start(ctx)
	if err != nil {
		return nil, err
	}

	elements := make(chan T, defaultConsumerBufferSize)
	decodeErrCh := make(chan error, 1)
	go func() {
		defer close(elements)
		defer close(decodeErrCh)
		for raw := range result.ElementStream() {
			var typed T
			if !decodeInto(raw, &typed) {
				select {
				case decodeErrCh <- newTypeValidation(fmt.Errorf("decoding streamed array element into %T", typed)):
				default:
				}
				continue
			}
			elements <- typed
		}
	}()

	return &TypedArrayResult[T]{StreamObjectResult: result, elements: elements, decodeErrCh: decodeErrCh}, nil
}

// TypedObjectResult decorates StreamObjectResult with a typed terminal accessor.
type TypedObjectResult[T any] struct {
	*StreamObjectResult
}

// Object blocks until the final value resolves. The value it carries was
// already produced by decodeValidator at finalize time, so this is a plain
// assertion rather than a second decode.
func (r *TypedObjectResult[T]) Object(ctx context.Context) (T, error) {
	var zero T
	value, err := r.StreamObjectResult.Object(ctx)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, newTypeValidation(fmt.Errorf("resolved value has type %T, want %T", value, zero))
	}
	return typed, nil
}

// TypedArrayResult decorates StreamObjectResult with typed element/terminal accessors.
type TypedArrayResult[T any] struct {
	*StreamObjectResult
	elements    chan T
	decodeErrCh chan error
}

// Elements yields each completed element decoded into a T, in index order.
func (r *TypedArrayResult[T]) Elements() <-chan T { return r.elements }

// Object blocks until the final array resolves into a []T. It also surfaces
// any element that the Elements() goroutine failed to decode along the way:
// those look-ahead elements are read off ElementStream before finalize-time
// validation ever sees them, so a bad one there would otherwise vanish
// silently instead of failing the call.
func (r *TypedArrayResult[T]) Object(ctx context.Context) ([]T, error) {
	select {
	case decodeErr, ok := <-r.decodeErrCh:
		if ok {
			return nil, decodeErr
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	value, err := r.StreamObjectResult.Object(ctx)
	if err != nil {
		return nil, err
	}
	elemsAny, ok := value.([]any)
	if !ok {
		return nil, newTypeValidation(fmt.Errorf("resolved value has type %T, want []%T", value, *new(T)))
	}
	out := make([]T, len(elemsAny))
	for i, e := range elemsAny {
		typed, ok := e.(T)
		if !ok {
			return nil, newTypeValidation(fmt.Errorf("element %d has type %T, want %T", i, e, *new(T)))
		}
		out[i] = typed
	}
	return out, nil
}

// decodeInto round-trips a decoded-JSON `any` value through encoding/json
// into dst, which must be a pointer. It reports whether the round-trip
// succeeded.
func decodeInto(value any, dst any) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false
	}
	return true
}

// schemaForType derives a JSON Schema object from a Go struct type's
// exported fields, each named by its json tag or, when untagged, by its Go
// field name; fields tagged "-" are skipped.
func schemaForType(t reflect.Type) (map[string]any, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type %s is not a struct", t.Name())
	}

	properties := make(map[string]any)
	required := make([]string, 0)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		jsonName := strings.Split(jsonTag, ",")[0]
		if jsonName == "" {
			jsonName = field.Name
		}

		properties[jsonName] = propertySchema(field.Type, field.Tag.Get("description"))

		if !strings.Contains(jsonTag, "omitempty") {
			required = append(required, jsonName)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema, nil
}

// propertySchema derives a JSON Schema fragment for a single Go type,
// recursing into slices, maps, and nested structs.
func propertySchema(t reflect.Type, description string) map[string]any {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	schema := make(map[string]any)
	if description != "" {
		schema["description"] = description
	}

	switch t.Kind() {
	case reflect.String:
		schema["type"] = "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		schema["type"] = "integer"
	case reflect.Float32, reflect.Float64:
		schema["type"] = "number"
	case reflect.Bool:
		schema["type"] = "boolean"
	case reflect.Slice, reflect.Array:
		schema["type"] = "array"
		schema["items"] = propertySchema(t.Elem(), "")
	case reflect.Map:
		schema["type"] = "object"
		schema["additionalProperties"] = propertySchema(t.Elem(), "")
	case reflect.Struct:
		nested, err := schemaForType(t)
		if err != nil {
			schema["type"] = "object"
			break
		}
		for k, v := range nested {
			schema[k] = v
		}
	default:
		schema["type"] = "string"
	}
	return schema
}
