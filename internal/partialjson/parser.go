// Package partialjson implements a total parse over arbitrary prefixes of a
// JSON text. Streaming structured output only ever has a truncated buffer to
// work with between fragments; this package turns that prefix into the
// "most complete" decodable value rather than failing outright.
package partialjson

import (
	"encoding/json"
	"unicode/utf8"
)

// State classifies how much of text could be recovered.
type State string

const (
	// StateSuccessful means text is syntactically complete, valid JSON.
	StateSuccessful State = "successful-parse"
	// StateRepaired means text was a proper prefix; Value is a best-effort repair.
	StateRepaired State = "repaired-parse"
	// StateFailed means text cannot plausibly be a prefix of any JSON value.
	StateFailed State = "failed-parse"
)

// Result is the outcome of Parse.
type Result struct {
	State State
	Value any
}

// Parse recovers the most complete value obtainable from a possibly
// truncated JSON text. It never returns an error; an unparsable prefix
// yields StateFailed with a nil Value.
func Parse(text string) Result {
	if len(text) == 0 {
		// The empty string is a valid prefix of any JSON text; there is
		// just nothing repaired to report yet.
		return Result{State: StateRepaired, Value: nil}
	}

	var direct any
	if err := json.Unmarshal([]byte(text), &direct); err == nil {
		return Result{State: StateSuccessful, Value: direct}
	}

	repaired, ok := repair(text)
	if !ok {
		return Result{State: StateFailed, Value: nil}
	}
	if repaired == "" {
		// A legal prefix (e.g. "tru", "-", whitespace) that hasn't yet
		// produced anything parseable.
		return Result{State: StateRepaired, Value: nil}
	}

	var value any
	if err := json.Unmarshal([]byte(repaired), &value); err != nil {
		return Result{State: StateFailed, Value: nil}
	}
	return Result{State: StateRepaired, Value: value}
}

// frame is one open container on the repair stack.
type frame struct {
	closer byte // '}' or ']'
}

// repair scans text once and produces a syntactically valid JSON document
// that best-effort represents the longest meaningful prefix of text. It
// returns ok=false only when text cannot be the prefix of any JSON value
// (e.g. it starts with a token that is not a legal JSON start).
func repair(text string) (string, bool) {
	s := &scanner{src: text}
	s.skipSpace()
	if s.pos >= len(s.src) {
		// Whitespace-only text is a legal (if uninformative) prefix.
		return "", true
	}
	if !isValueStart(s.src[s.pos]) {
		return "", false
	}

	out := make([]byte, 0, len(text)+8)
	stack := make([]frame, 0, 8)
	out = s.scanValue(&out, &stack)
	if s.failed {
		return "", false
	}

	// Close every still-open container, innermost first.
	for i := len(stack) - 1; i >= 0; i-- {
		out = append(out, stack[i].closer)
	}
	return string(out), true
}

func isValueStart(b byte) bool {
	switch {
	case b == '{' || b == '[' || b == '"' || b == '-':
		return true
	case b >= '0' && b <= '9':
		return true
	case b == 't' || b == 'f' || b == 'n':
		return true
	}
	return false
}

// scanner walks src byte-by-byte, tracking the single position shared by
// all the recursive-descent helpers below. failed is set once a byte
// sequence is found that cannot plausibly be a prefix of any JSON value
// (as opposed to merely an incomplete one).
type scanner struct {
	src    string
	pos    int
	failed bool
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

// scanValue appends a repaired rendering of the value starting at s.pos to
// out, pushing/popping stack as containers open/close, and returns the
// updated out. It stops (without error) wherever the prefix runs dry.
func (s *scanner) scanValue(out *[]byte, stack *[]frame) []byte {
	if s.pos >= len(s.src) {
		return *out
	}
	if !isValueStart(s.src[s.pos]) {
		s.failed = true
		return *out
	}
	switch s.src[s.pos] {
	case '{':
		return s.scanObject(out, stack)
	case '[':
		return s.scanArray(out, stack)
	case '"':
		return s.scanString(out, stack)
	default:
		return s.scanLiteral(out, stack)
	}
}

func (s *scanner) scanObject(out *[]byte, stack *[]frame) []byte {
	*out = append(*out, '{')
	*stack = append(*stack, frame{closer: '}'})
	s.pos++ // consume '{'
	first := true

	for {
		s.skipSpace()
		if s.pos >= len(s.src) {
			return *out // unterminated object: caller closes it
		}
		if s.src[s.pos] == '}' {
			s.pos++
			*stack = (*stack)[:len(*stack)-1]
			*out = append(*out, '}')
			return *out
		}
		if !first {
			if s.src[s.pos] != ',' {
				// Malformed continuation; treat object as closed here.
				*stack = (*stack)[:len(*stack)-1]
				*out = append(*out, '}')
				return *out
			}
			s.pos++ // consume ','
			s.skipSpace()
			if s.pos >= len(s.src) {
				// Dangling comma: drop it, close object.
				*stack = (*stack)[:len(*stack)-1]
				*out = append(*out, '}')
				return *out
			}
			if s.src[s.pos] == '}' {
				s.pos++
				*stack = (*stack)[:len(*stack)-1]
				*out = append(*out, '}')
				return *out
			}
		}

		keyStart := len(*out)
		if s.src[s.pos] != '"' {
			// Not a key: drop this trailing incomplete pair.
			*stack = (*stack)[:len(*stack)-1]
			*out = append(*out, '}')
			return *out
		}
		key, complete := s.readStringLiteral()
		if !complete {
			// Unterminated key: drop the trailing incomplete pair.
			*stack = (*stack)[:len(*stack)-1]
			*out = append(*out, '}')
			return *out
		}
		s.skipSpace()
		if s.pos >= len(s.src) || s.src[s.pos] != ':' {
			// Key without value: drop it.
			*stack = (*stack)[:len(*stack)-1]
			*out = append(*out, '}')
			return *out
		}
		s.pos++ // consume ':'
		s.skipSpace()
		if s.pos >= len(s.src) {
			// Key with no value at all: drop it.
			*stack = (*stack)[:len(*stack)-1]
			*out = append(*out, '}')
			return *out
		}

		if !first {
			*out = append(*out, ',')
		}
		valStart := len(*out)
		*out = append(*out, key...)
		*out = append(*out, ':')
		before := s.pos
		*out = s.scanValue(out, stack)
		if len(*out) == valStart+len(key)+1 && s.pos == before {
			// scanValue produced nothing usable (e.g. an in-progress
			// number/literal with no characters yet): drop the pair.
			*out = (*out)[:keyStart]
			*stack = (*stack)[:len(*stack)-1]
			*out = append(*out, '}')
			return *out
		}
		if valueIncomplete(*out, valStart) {
			*out = (*out)[:keyStart]
			*stack = (*stack)[:len(*stack)-1]
			*out = append(*out, '}')
			return *out
		}
		first = false
	}
}

func (s *scanner) scanArray(out *[]byte, stack *[]frame) []byte {
	*out = append(*out, '[')
	*stack = append(*stack, frame{closer: ']'})
	s.pos++ // consume '['
	first := true

	for {
		s.skipSpace()
		if s.pos >= len(s.src) {
			return *out
		}
		if s.src[s.pos] == ']' {
			s.pos++
			*stack = (*stack)[:len(*stack)-1]
			*out = append(*out, ']')
			return *out
		}
		if !first {
			if s.src[s.pos] != ',' {
				*stack = (*stack)[:len(*stack)-1]
				*out = append(*out, ']')
				return *out
			}
			s.pos++
			s.skipSpace()
			if s.pos >= len(s.src) {
				*stack = (*stack)[:len(*stack)-1]
				*out = append(*out, ']')
				return *out
			}
			if s.src[s.pos] == ']' {
				s.pos++
				*stack = (*stack)[:len(*stack)-1]
				*out = append(*out, ']')
				return *out
			}
		}

		elemStart := len(*out)
		if !first {
			*out = append(*out, ',')
		}
		valStart := len(*out)
		before := s.pos
		*out = s.scanValue(out, stack)
		if len(*out) == valStart && s.pos == before {
			*out = (*out)[:elemStart]
			*stack = (*stack)[:len(*stack)-1]
			*out = append(*out, ']')
			return *out
		}
		if valueIncomplete(*out, valStart) {
			*out = (*out)[:elemStart]
			*stack = (*stack)[:len(*stack)-1]
			*out = append(*out, ']')
			return *out
		}
		first = false
	}
}

func (s *scanner) scanString(out *[]byte, _ *[]frame) []byte {
	lit, _ := s.readStringLiteral()
	*out = append(*out, lit...)
	return *out
}

// readStringLiteral reads a JSON string starting at the current '"',
// truncating at the last complete UTF-8 code unit if it is unterminated,
// and always returns a syntactically closed string literal. complete
// reports whether the source string was properly terminated.
func (s *scanner) readStringLiteral() (lit []byte, complete bool) {
	s.pos++ // consume opening quote
	buf := make([]byte, 0, 16)
	buf = append(buf, '"')

	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '\\' {
			if s.pos+1 >= len(s.src) {
				// Dangling escape: drop it.
				s.pos = len(s.src)
				buf = append(buf, '"')
				return buf, false
			}
			next := s.src[s.pos+1]
			if next == 'u' {
				if s.pos+6 > len(s.src) {
					// Incomplete \uXXXX escape: drop it.
					s.pos = len(s.src)
					buf = append(buf, '"')
					return buf, false
				}
				buf = append(buf, s.src[s.pos:s.pos+6]...)
				s.pos += 6
				continue
			}
			buf = append(buf, c, next)
			s.pos += 2
			continue
		}
		if c == '"' {
			buf = append(buf, '"')
			s.pos++
			return buf, true
		}
		// Stop cleanly at the last complete UTF-8 code unit.
		r, size := utf8.DecodeRuneInString(s.src[s.pos:])
		if r == utf8.RuneError && size <= 1 {
			// Incomplete trailing multi-byte rune: truncate here.
			buf = append(buf, '"')
			s.pos = len(s.src)
			return buf, false
		}
		buf = append(buf, s.src[s.pos:s.pos+size]...)
		s.pos += size
	}

	// Ran off the end without a closing quote.
	buf = append(buf, '"')
	return buf, false
}

// scanLiteral handles true/false/null and numbers, including in-progress
// tokens like "tru" or "123." or bare "-", which are dropped entirely by
// returning out unchanged. The caller (scanValue) has already verified
// s.src[s.pos] is a legal value-start byte.
func (s *scanner) scanLiteral(out *[]byte, _ *[]frame) []byte {
	switch s.src[s.pos] {
	case 't', 'f', 'n':
		return s.scanKeyword(out)
	default:
		return s.scanNumber(out)
	}
}

// scanKeyword matches s.src against true/false/null one character at a
// time. A mismatch partway through means the text diverges from every
// keyword and cannot be the prefix of any JSON value; running out of
// input mid-match means it is merely incomplete.
func (s *scanner) scanKeyword(out *[]byte) []byte {
	var kw string
	switch s.src[s.pos] {
	case 't':
		kw = "true"
	case 'f':
		kw = "false"
	default:
		kw = "null"
	}

	start := s.pos
	i := 0
	for i < len(kw) && s.pos < len(s.src) && s.src[s.pos] == kw[i] {
		s.pos++
		i++
	}
	if i == len(kw) {
		*out = append(*out, kw...)
		return *out
	}
	if s.pos >= len(s.src) {
		// Ran out of input mid-keyword: a legitimate incomplete prefix.
		s.pos = start
		return *out
	}
	s.failed = true
	s.pos = start
	return *out
}

// scanNumber consumes the run of number-grammar bytes. If the run as a
// whole is a syntactically complete JSON number it is kept verbatim;
// otherwise (a trailing "." or exponent marker, or a bare "-") the whole
// run is dropped as not-yet-present.
func (s *scanner) scanNumber(out *[]byte) []byte {
	start := s.pos
	for s.pos < len(s.src) && isNumberByte(s.src[s.pos]) {
		s.pos++
	}
	tok := s.src[start:s.pos]

	if n, ok := completeNumberPrefix(tok); ok {
		*out = append(*out, n...)
		return *out
	}

	// No complete number in this run (e.g. a bare "-"): not yet present.
	s.pos = start
	return *out
}

func isNumberByte(b byte) bool {
	switch {
	case b >= '0' && b <= '9':
		return true
	case b == '+' || b == '-' || b == '.' || b == 'e' || b == 'E':
		return true
	}
	return false
}

// completeNumberPrefix reports whether tok, taken as a whole, is a
// syntactically complete JSON number.
func completeNumberPrefix(tok string) (string, bool) {
	if tok == "" {
		return "", false
	}
	// A number run only ever reaches end-of-buffer mid-token (any earlier
	// stopping point already means the next byte isn't part of a number,
	// so tok is necessarily a complete number already). An in-progress
	// fraction/exponent/lone "-" is not trimmed to a shorter valid
	// prefix — per the repair rules it is not-yet-present and the whole
	// token is dropped.
	var n json.Number
	if err := json.Unmarshal([]byte(tok), &n); err != nil {
		return "", false
	}
	return tok, true
}

// valueIncomplete reports whether the bytes appended to out since valStart
// form a syntactically unusable fragment (i.e. scanValue wrote nothing).
func valueIncomplete(out []byte, valStart int) bool {
	return len(out) == valStart
}
