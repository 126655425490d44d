package httpclient

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// maxBodyFileBytes bounds payload files, which are held in memory.
const maxBodyFileBytes = 32 << 20

// Body is a request payload replayed on every iteration. File payloads are
// read once when the body is created. The zero value is an empty body.
type Body struct {
	data []byte
}

// NewBody returns an inline body or the contents of bodyFile. Supplying
// both is an error.
func NewBody(inline, bodyFile string) (Body, error) {
	bodyFile = strings.TrimSpace(bodyFile)
	switch {
	case inline != "" && bodyFile != "":
		return Body{}, errors.New("body and body file cannot both be provided")
	case inline != "":
		return Body{data: []byte(inline)}, nil
	case bodyFile == "":
		return Body{}, nil
	}

	info, err := os.Stat(bodyFile)
	if err != nil {
		return Body{}, fmt.Errorf("body file: %w", err)
	}
	if info.IsDir() {
		return Body{}, fmt.Errorf("body file %q is a directory", bodyFile)
	}
	if info.Size() > maxBodyFileBytes {
		return Body{}, fmt.Errorf("body file %q is larger than %d bytes", bodyFile, maxBodyFileBytes)
	}
	data, err := os.ReadFile(bodyFile)
	if err != nil {
		return Body{}, fmt.Errorf("body file: %w", err)
	}
	return Body{data: data}, nil
}

// Len is the payload size in bytes.
func (b Body) Len() int64 { return int64(len(b.data)) }

// Open returns a fresh reader over the payload, or http.NoBody when empty.
func (b Body) Open() io.ReadCloser {
	if len(b.data) == 0 {
		return http.NoBody
	}
	return io.NopCloser(bytes.NewReader(b.data))
}
