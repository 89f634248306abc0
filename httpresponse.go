package streamobject

import (
	"io"
	"net/http"
)

// textStreamContentType is the content type mandated for the
// text-stream HTTP adapter.
const textStreamContentType = "text/plain; charset=utf-8"

// ToTextStreamResponse returns an *http.Response whose body is TextStream
// encoded as UTF-8, one chunk per text-delta. The body must be closed by
// the caller once fully read.
func (r *StreamObjectResult) ToTextStreamResponse() *http.Response {
	pr, pw := io.Pipe()

	go func() {
		for delta := range r.TextStream() {
			if _, err := pw.Write([]byte(delta)); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.Close()
	}()

	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     http.StatusText(http.StatusOK),
		Header: http.Header{
			"Content-Type": []string{textStreamContentType},
		},
		Body: pr,
	}
}

// PipeTextStreamToResponse writes TextStream directly to an
// http.ResponseWriter, flushing after every delta so consumers see bytes
// as soon as the provider produces them.
func (r *StreamObjectResult) PipeTextStreamToResponse(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", textStreamContentType)
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)

	for delta := range r.TextStream() {
		if _, err := io.WriteString(w, delta); err != nil {
			return err
		}
		if canFlush {
			flusher.Flush()
		}
	}
	return nil
}
