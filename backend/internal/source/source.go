package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	apperrors "brainport/backend/pkg/errors"
)

// Logical export files read by the importer
const (
	Thoughts = "thoughts"
	Links    = "links"
)

// maxRecordSize bounds one NDJSON line. Notes with embedded content can be large.
const maxRecordSize = 16 * 1024 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Source opens logical record files. Each Open starts a fresh pass.
type Source interface {
	Open(ctx context.Context, name string) (*Stream, error)
}

// Record is one decoded JSON line
type Record struct {
	Path string
	Line int
	Data json.RawMessage
}

// Decode unmarshals the record into v
func (r Record) Decode(v any) error {
	return json.Unmarshal(r.Data, v)
}

func (r Record) String() string {
	return fmt.Sprintf("%s:%d", r.Path, r.Line)
}

// Stream yields records one at a time in file order
type Stream struct {
	path    string
	closer  io.Closer
	scanner *bufio.Scanner
	line    int

	mu        sync.Mutex
	destroyed error
}

func newStream(path string, r io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	return &Stream{path: path, closer: r, scanner: scanner}
}

// Path returns the file the stream reads
func (s *Stream) Path() string {
	return s.path
}

// Next returns the next record, io.EOF at the end, or the error the stream
// was destroyed with.
func (s *Stream) Next(ctx context.Context) (Record, error) {
	for {
		if err := s.err(); err != nil {
			return Record{}, err
		}
		if err := ctx.Err(); err != nil {
			return Record{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return Record{}, fmt.Errorf("reading %s: %w", s.path, err)
			}
			return Record{}, io.EOF
		}
		s.line++
		data := s.scanner.Bytes()
		if s.line == 1 {
			data = bytes.TrimPrefix(data, utf8BOM)
		}
		data = bytes.TrimSpace(data)
		if len(data) == 0 {
			continue
		}
		// The scanner reuses its buffer
		return Record{Path: s.path, Line: s.line, Data: append(json.RawMessage(nil), data...)}, nil
	}
}

// Destroy stops the stream; every later Next returns err
func (s *Stream) Destroy(err error) {
	if err == nil {
		err = io.ErrClosedPipe
	}
	s.mu.Lock()
	if s.destroyed == nil {
		s.destroyed = err
	}
	s.mu.Unlock()
}

// Close releases the underlying file
func (s *Stream) Close() error {
	s.Destroy(io.ErrClosedPipe)
	return s.closer.Close()
}

func (s *Stream) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Dir resolves logical names to files below an export directory
type Dir struct {
	root    string
	pattern string
}

// NewDir creates a directory source. pattern is a doublestar glob where %s
// is replaced by the logical name, e.g. "**/%s.json".
func NewDir(root, pattern string) *Dir {
	return &Dir{root: root, pattern: pattern}
}

// Resolve finds the file backing name. When several match, the shortest
// path wins so a top-level export beats nested backups.
func (d *Dir) Resolve(name string) (string, error) {
	pattern := fmt.Sprintf(d.pattern, name)
	matches, err := doublestar.Glob(os.DirFS(d.root), pattern)
	if err != nil {
		return "", fmt.Errorf("matching %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "", apperrors.NewSourceNotFound(name, pattern)
	}
	sort.Slice(matches, func(i, j int) bool {
		if len(matches[i]) != len(matches[j]) {
			return len(matches[i]) < len(matches[j])
		}
		return matches[i] < matches[j]
	})
	return filepath.Join(d.root, filepath.FromSlash(matches[0])), nil
}

// Open starts a pass over the file backing name
func (d *Dir) Open(ctx context.Context, name string) (*Stream, error) {
	path, err := d.Resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewSourceNotFound(name, path)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return newStream(path, f), nil
}

// Memory serves records from memory, keyed by logical name
type Memory struct {
	mu    sync.Mutex
	files map[string][]string
	opens map[string]int
}

// NewMemory creates an in-memory source
func NewMemory() *Memory {
	return &Memory{files: map[string][]string{}, opens: map[string]int{}}
}

// Add appends records to name. Strings are taken as raw JSON lines; any other
// value is marshaled.
func (m *Memory) Add(name string, records ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		if line, ok := rec.(string); ok {
			m.files[name] = append(m.files[name], line)
			continue
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding record for %s: %w", name, err)
		}
		m.files[name] = append(m.files[name], string(data))
	}
	return nil
}

// Opens reports how many passes were started over name
func (m *Memory) Opens(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens[name]
}

// Open starts a pass over name
func (m *Memory) Open(ctx context.Context, name string) (*Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines, ok := m.files[name]
	if !ok {
		return nil, apperrors.NewSourceNotFound(name, "memory")
	}
	m.opens[name]++
	body := strings.Join(lines, "\n")
	return newStream("memory://"+name, io.NopCloser(strings.NewReader(body))), nil
}
