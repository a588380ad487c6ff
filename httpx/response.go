package httpx

import (
	"bytes"
	"net/http"
)

// Buffer is an http.ResponseWriter that records the response, so it can
// be inspected (did the inner handler 401?) and replayed with Flush.
type Buffer struct {
	status int
	header http.Header
	body   bytes.Buffer
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (resp *Buffer) Status() int {
	return resp.status
}

func (resp *Buffer) Header() http.Header {
	if resp.header == nil {
		resp.header = http.Header{}
	}
	return resp.header
}

func (resp *Buffer) Body() []byte {
	return resp.body.Bytes()
}

func (resp *Buffer) Write(body []byte) (int, error) {
	return resp.body.Write(body)
}

func (resp *Buffer) WriteHeader(statusCode int) {
	resp.status = statusCode
}

func (resp *Buffer) Flush(w http.ResponseWriter) error {
	if resp.header != nil {
		header := w.Header()
		for key, value := range resp.header {
			header[key] = value
		}
	}
	if resp.status != 0 {
		w.WriteHeader(resp.status)
	}
	if resp.body.Len() > 0 {
		_, err := w.Write(resp.body.Bytes())
		return err
	}
	return nil
}
