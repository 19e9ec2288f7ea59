// FILE: lixenwraith/confbind/loader.go
package confbind

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Supported file formats.
const (
	FormatAuto = "auto"
	FormatTOML = "toml"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// DefaultMaxFileSize bounds configuration files read by FileSource.
const DefaultMaxFileSize = 10 * MaxValueSize

// FileSource serves the flattened contents of a TOML, JSON or YAML file.
// Nested tables become dotted keys and arrays of tables are indexed: servers.0.host.
type FileSource struct {
	path    string
	format  string
	maxSize int64
	logger  *zap.Logger

	mu      sync.RWMutex
	values  map[string]Value
	watcher *watcher
}

// FileOption configures a FileSource.
type FileOption func(*FileSource)

// WithFormat forces a format instead of detecting it.
func WithFormat(format string) FileOption {
	return func(s *FileSource) { s.format = format }
}

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(n int64) FileOption {
	return func(s *FileSource) { s.maxSize = n }
}

// WithFileLogger sets the logger used for reloads and watching.
func WithFileLogger(l *zap.Logger) FileOption {
	return func(s *FileSource) { s.logger = l }
}

// NewFileSource loads path. A missing file returns ErrConfigNotFound.
func NewFileSource(path string, opts ...FileOption) (*FileSource, error) {
	s := &FileSource{
		path:    path,
		format:  FormatAuto,
		maxSize: DefaultMaxFileSize,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	switch s.format {
	case FormatAuto, FormatTOML, FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("unsupported file format %q", s.format)
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the file path.
func (s *FileSource) Path() string { return s.path }

// Reload re-reads the file. On failure the previous contents stay in place.
func (s *FileSource) Reload() error {
	values, err := readFile(s.path, s.format, s.maxSize)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	s.logger.Debug("configuration file loaded", zap.String("path", s.path), zap.Int("keys", len(values)))
	return nil
}

func (s *FileSource) Lookup(key string, _ Attributes) Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

func (s *FileSource) Entries() iter.Seq2[string, Value] {
	s.mu.RLock()
	snapshot := maps.Clone(s.values)
	s.mu.RUnlock()
	return sortedEntries(snapshot)
}

func (s *FileSource) snapshot() map[string]Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

func readFile(path, format string, maxSize int64) (map[string]Value, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat config file '%s': %w", path, err)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("config file '%s' exceeds maximum size %d bytes", path, maxSize)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file '%s': %w", path, err)
	}
	defer file.Close()

	var reader io.Reader = file
	if maxSize > 0 {
		reader = io.LimitReader(file, maxSize)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	if format == "" || format == FormatAuto {
		format = detectFileFormat(path)
		if format == "" {
			format = detectFormatFromContent(data)
		}
	}

	doc, err := parseDocument(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}
	return flattenValues(doc)
}

func parseDocument(data []byte, format string) (map[string]any, error) {
	doc := make(map[string]any)
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("TOML: %w", err)
		}
	case FormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber() // preserve number precision
		if err := decoder.Decode(&doc); err != nil {
			return nil, fmt.Errorf("JSON: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("YAML: %w", err)
		}
	default:
		return nil, errors.New("unable to determine format")
	}
	return doc, nil
}

// detectFileFormat determines format from file extension
func detectFileFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".tml":
		return FormatTOML
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		// .conf, .config and the rest are detected from content
		return ""
	}
}

// detectFormatFromContent attempts to detect format by parsing
func detectFormatFromContent(data []byte) string {
	// JSON first, it is the strictest
	var jsonTest map[string]any
	if err := json.Unmarshal(data, &jsonTest); err == nil {
		return FormatJSON
	}

	// TOML before YAML, most TOML documents are not valid YAML mappings anyway
	var tomlTest map[string]any
	if err := toml.Unmarshal(data, &tomlTest); err == nil {
		return FormatTOML
	}

	var yamlTest map[string]any
	if err := yaml.Unmarshal(data, &yamlTest); err == nil {
		return FormatYAML
	}

	return ""
}
