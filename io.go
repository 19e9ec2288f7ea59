// FILE: lixenwraith/confbind/io.go
package confbind

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// EnvTransformFunc converts a configuration key to an environment variable name
type EnvTransformFunc func(key string) string

// EnvSource looks keys up in the process environment.
// With prefix "MYAPP_" the key server.port maps to MYAPP_SERVER_PORT.
type EnvSource struct {
	transform EnvTransformFunc
	whitelist map[string]bool
	lookupEnv func(string) (string, bool)
}

// EnvOption configures an EnvSource.
type EnvOption func(*EnvSource)

// WithEnvTransform replaces the default key transformation.
func WithEnvTransform(fn EnvTransformFunc) EnvOption {
	return func(s *EnvSource) {
		if fn != nil {
			s.transform = fn
		}
	}
}

// WithEnvWhitelist limits which keys are checked for env vars
func WithEnvWhitelist(keys ...string) EnvOption {
	return func(s *EnvSource) {
		if s.whitelist == nil {
			s.whitelist = make(map[string]bool)
		}
		for _, k := range keys {
			s.whitelist[k] = true
		}
	}
}

// withLookupEnv substitutes os.LookupEnv in tests.
func withLookupEnv(fn func(string) (string, bool)) EnvOption {
	return func(s *EnvSource) { s.lookupEnv = fn }
}

// NewEnvSource creates an environment source using prefix in the default transformation.
func NewEnvSource(prefix string, opts ...EnvOption) *EnvSource {
	s := &EnvSource{
		transform: defaultEnvTransform(prefix),
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup returns the variable for key. Oversized values are treated as absent.
func (s *EnvSource) Lookup(key string, _ Attributes) Value {
	if s.whitelist != nil && !s.whitelist[key] {
		return Absent()
	}
	value, ok := s.lookupEnv(s.transform(key))
	if !ok || len(value) > MaxValueSize {
		return Absent()
	}
	// Remove quotes if present
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		value = value[1 : len(value)-1]
	}
	return Of(value)
}

// Name returns the variable name consulted for key.
func (s *EnvSource) Name(key string) string { return s.transform(key) }

// defaultEnvTransform creates the default environment variable transformer
func defaultEnvTransform(prefix string) EnvTransformFunc {
	replacer := strings.NewReplacer(".", "_", "-", "_")
	return func(key string) string {
		return prefix + strings.ToUpper(replacer.Replace(key))
	}
}

// ArgsSource serves command-line overrides: --key value, --key=value and bare --flag for true.
type ArgsSource struct {
	*MapSource
}

// NewArgsSource parses args. Non-flag arguments are skipped.
func NewArgsSource(args []string) (*ArgsSource, error) {
	parsed, err := parseArgs(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCLIParse, err)
	}
	return &ArgsSource{MapSource: NewMapSource(parsed)}, nil
}

// parseArgs processes command-line arguments into flat dotted keys.
func parseArgs(args []string) (map[string]string, error) {
	result := make(map[string]string)
	i := 0
	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			i++
			continue
		}

		argContent := strings.TrimPrefix(arg, "--")
		if argContent == "" {
			// "--" separator
			i++
			continue
		}

		var keyPath, valueStr string
		if k, v, ok := strings.Cut(argContent, "="); ok {
			keyPath, valueStr = k, v
			i++
		} else {
			keyPath = argContent
			// boolean flag when followed by another flag or nothing
			if i+1 >= len(args) || strings.HasPrefix(args[i+1], "--") {
				valueStr = "true"
				i++
			} else {
				valueStr = args[i+1]
				i += 2
			}
		}

		if keyPath == "" {
			// --=value
			continue
		}
		if err := validateKey(keyPath); err != nil {
			return nil, err
		}
		if len(valueStr) > MaxValueSize {
			return nil, fmt.Errorf("%w: --%s", ErrValueSize, keyPath)
		}
		result[keyPath] = valueStr
	}

	return result, nil
}

// writeTOML encodes nested data with BurntSushi/toml and writes it atomically.
func writeTOML(path string, nested map[string]any) error {
	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(nested); err != nil {
		return fmt.Errorf("failed to marshal configuration to TOML: %w", err)
	}
	return atomicWriteFile(path, buf.Bytes())
}

// atomicWriteFile performs atomic file write
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	tempPath := tempFile.Name()
	defer os.Remove(tempPath) // Clean up on any error

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}
