package streamobject

import "strings"

// ThinkingMarker is a pair of start/end markers delimiting a reasoning block
// inline within a provider's text-delta stream.
type ThinkingMarker struct {
	Start string
	End   string
}

// ThinkingMarkers is a set of marker pairs checked together, so a single
// call can recognize more than one model's reasoning-block convention at
// once.
type ThinkingMarkers []ThinkingMarker

// Preset marker sets for common model families.
var (
	ThinkingMarkersDefault = ThinkingMarkers{
		{Start: "<thinking>", End: "</thinking>"},
		{Start: "[REASONING]", End: "[/REASONING]"},
		{Start: "<seed:think>", End: "</seed:think>"},
	}

	ThinkingMarkersSeedThink = ThinkingMarkers{
		{Start: "<seed:think>", End: "</seed:think>"},
	}

	ThinkingMarkersDeepSeek = ThinkingMarkers{
		{Start: "<think>", End: "</think>"},
	}

	ThinkingMarkersQwen = ThinkingMarkers{
		{Start: "<|thinking|>", End: "<|/thinking|>"},
	}

	ThinkingMarkersAll = ThinkingMarkers{
		{Start: "<thinking>", End: "</thinking>"},
		{Start: "[REASONING]", End: "[/REASONING]"},
		{Start: "<seed:think>", End: "</seed:think>"},
		{Start: "<think>", End: "</think>"},
		{Start: "<|thinking|>", End: "<|/thinking|>"},
		{Start: "<reason>", End: "</reason>"},
		{Start: "<reasoning>", End: "</reasoning>"},
	}
)

func (tm ThinkingMarkers) maxMarkerLen() int {
	max := 0
	for _, m := range tm {
		if len(m.Start) > max {
			max = len(m.Start)
		}
		if len(m.End) > max {
			max = len(m.End)
		}
	}
	return max
}

// findEarliest returns the lowest index in buf at which any start (or, when
// wantStart is false, any end) marker begins, along with that marker. It
// returns -1 when none occur.
func (tm ThinkingMarkers) findEarliest(buf []byte, wantStart bool) (int, ThinkingMarker) {
	best := -1
	var bestMarker ThinkingMarker
	for _, m := range tm {
		needle := m.End
		if wantStart {
			needle = m.Start
		}
		idx := strings.Index(string(buf), needle)
		if idx < 0 {
			continue
		}
		if best < 0 || idx < best {
			best = idx
			bestMarker = m
		}
	}
	return best, bestMarker
}

// thinkingSplitter incrementally separates a rolling text-delta stream into
// the text destined for the JSON buffer and the text inside marker-delimited
// reasoning blocks. It holds back enough trailing bytes between calls that a
// marker split across two deltas is still recognized.
type thinkingSplitter struct {
	markers ThinkingMarkers
	active  bool
	buf     []byte
}

func newThinkingSplitter(markers ThinkingMarkers) *thinkingSplitter {
	if len(markers) == 0 {
		return nil
	}
	return &thinkingSplitter{markers: markers}
}

// Feed appends delta to the splitter's internal buffer and returns the
// portion destined for the JSON buffer and the portion inside a reasoning
// block. Either may be empty. Bytes that might still be the prefix of a
// marker are held back until a following Feed or Flush call resolves them.
func (ts *thinkingSplitter) Feed(delta string) (forJSON, forReasoning string) {
	ts.buf = append(ts.buf, delta...)
	return ts.drain(false)
}

// Flush forces out any bytes still held back waiting for a marker that will
// now never arrive, e.g. once the upstream stream has ended. Call it once,
// after the last Feed.
func (ts *thinkingSplitter) Flush() (forJSON, forReasoning string) {
	return ts.drain(true)
}

func (ts *thinkingSplitter) drain(final bool) (forJSON, forReasoning string) {
	holdback := ts.markers.maxMarkerLen() - 1
	if final {
		holdback = 0
	}

	var jsonOut, reasoningOut strings.Builder
	for {
		idx, marker := ts.markers.findEarliest(ts.buf, !ts.active)
		if idx < 0 {
			if holdback <= 0 || len(ts.buf) <= holdback {
				if final {
					if ts.active {
						reasoningOut.Write(ts.buf)
					} else {
						jsonOut.Write(ts.buf)
					}
					ts.buf = nil
				}
				break
			}
			flush := ts.buf[:len(ts.buf)-holdback]
			if ts.active {
				reasoningOut.Write(flush)
			} else {
				jsonOut.Write(flush)
			}
			ts.buf = ts.buf[len(ts.buf)-holdback:]
			break
		}

		if ts.active {
			reasoningOut.Write(ts.buf[:idx])
			ts.buf = ts.buf[idx+len(marker.End):]
			ts.active = false
		} else {
			jsonOut.Write(ts.buf[:idx])
			ts.buf = ts.buf[idx+len(marker.Start):]
			ts.active = true
		}
	}

	return jsonOut.String(), reasoningOut.String()
}
