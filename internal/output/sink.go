package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Sink receives the rendered report. Implementations decide which of the
// text and document forms they keep.
type Sink interface {
	Name() string
	Write(text string, doc Document) error
}

// WriterSink prints the text report to an io.Writer.
type WriterSink struct {
	W io.Writer
}

func (s WriterSink) Name() string { return "stdout" }

func (s WriterSink) Write(text string, _ Document) error {
	_, err := io.WriteString(s.W, text)
	return err
}

// FileSink writes the document to a file as JSON, or as YAML when the path
// ends in .yaml or .yml. Writers coordinate through a sibling lock file and
// the document is renamed into place so readers never see a partial file.
type FileSink struct {
	path string
	yaml bool
}

// NewFileSink creates a sink for path.
func NewFileSink(path string) (*FileSink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("summary file path is required")
	}
	ext := strings.ToLower(filepath.Ext(path))
	return &FileSink{path: path, yaml: ext == ".yaml" || ext == ".yml"}, nil
}

func (s *FileSink) Name() string { return s.path }

func (s *FileSink) Write(_ string, doc Document) (err error) {
	data, err := s.encode(doc)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create summary directory: %w", err)
	}

	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock summary file: %w", err)
	}
	defer func() {
		err = multierr.Append(err, lock.Unlock())
		_ = os.Remove(lock.Path())
	}()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close summary: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename summary: %w", err)
	}
	return nil
}

func (s *FileSink) encode(doc Document) ([]byte, error) {
	if s.yaml {
		return yaml.Marshal(doc)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Emit renders s once and hands it to every sink. All sinks are attempted;
// failures are combined.
func Emit(s *Summary, opts RenderOptions, sinks ...Sink) error {
	text, doc := Render(s, opts)
	var errs error
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		if err := sink.Write(text, doc); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errs
}
