package output

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"

	"github.com/aquasecurity/patchfinder/types"
)

// Stdout is the path that makes an Exporter print instead of writing a file.
const Stdout = "-"

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", xerrors.Errorf("unknown output format: %q", s)
	}
}

// Sink receives patches as they are accepted. Close flushes whatever the
// sink buffered.
type Sink interface {
	Write(types.Patch) error
	Close() error
}

// Exporter collects patches and writes them as one document on Close.
type Exporter struct {
	fs     afero.Fs
	path   string
	format Format
	stdout io.Writer

	mu      sync.Mutex
	patches []types.Patch
}

func NewExporter(fs afero.Fs, path string, format Format) *Exporter {
	return &Exporter{fs: fs, path: path, format: format, stdout: os.Stdout}
}

func (e *Exporter) Write(p types.Patch) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.patches = append(e.patches, p)
	return nil
}

func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	patches := e.patches
	if patches == nil {
		patches = []types.Patch{}
	}
	b, err := marshal(e.format, patches)
	if err != nil {
		return err
	}

	if e.path == Stdout || e.path == "" {
		if _, err = e.stdout.Write(b); err != nil {
			return xerrors.Errorf("failed to print patches: %w", err)
		}
		return nil
	}

	if dir := filepath.Dir(e.path); dir != "." {
		if err = e.fs.MkdirAll(dir, os.ModePerm); err != nil {
			return xerrors.Errorf("failed to create %s: %w", dir, err)
		}
	}
	f, err := e.fs.Create(e.path)
	if err != nil {
		return xerrors.Errorf("unable to open a file: %w", err)
	}
	defer f.Close()

	if _, err = f.Write(b); err != nil {
		return xerrors.Errorf("failed to save a file: %w", err)
	}
	return nil
}

func marshal(format Format, patches []types.Patch) ([]byte, error) {
	switch format {
	case FormatYAML:
		b, err := yaml.Marshal(patches)
		if err != nil {
			return nil, xerrors.Errorf("failed to marshal YAML: %w", err)
		}
		return b, nil
	case FormatJSON, "":
		b, err := json.MarshalIndent(patches, "", "  ")
		if err != nil {
			return nil, xerrors.Errorf("failed to marshal JSON: %w", err)
		}
		return append(b, '\n'), nil
	default:
		return nil, xerrors.Errorf("unknown output format: %q", format)
	}
}

type tee []Sink

// Tee returns a sink writing to every sink in order. All sinks see every
// patch even when one of them fails.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

func (t tee) Write(p types.Patch) error {
	var errs error
	for _, s := range t {
		if err := s.Write(p); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

func (t tee) Close() error {
	var errs error
	for _, s := range t {
		if err := s.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}
