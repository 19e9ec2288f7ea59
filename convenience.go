// File: lixenwraith/confbind/convenience.go
package confbind

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
)

// StandardSource chains the usual sources with precedence CLI > Env > File.
// A missing configFile is not fatal: the chain is returned together with ErrConfigNotFound.
func StandardSource(envPrefix, configFile string, args []string) (ChainSource, error) {
	cli, err := NewArgsSource(args)
	if err != nil {
		return nil, err
	}
	sources := []Source{cli, NewEnvSource(envPrefix)}

	var loadErr error
	if configFile != "" {
		file, err := NewFileSource(configFile)
		switch {
		case err == nil:
			sources = append(sources, file)
		case errors.Is(err, ErrConfigNotFound):
			loadErr = err
		default:
			return nil, err
		}
	}
	return Chain(sources...), loadErr
}

// defaultRegistry backs Quick. It is built on first use and lives for the process, so its model
// cache is shared by every Quick call.
var defaultRegistry = sync.OnceValues(func() (*Registry, error) {
	return NewBuilder().Build()
})

// Quick binds target from src with the shared default registry.
// This is the recommended way to bind configuration for most applications
func Quick(src Source, target any) error {
	r, err := defaultRegistry()
	if err != nil {
		return err
	}
	return r.Bind(src, target)
}

// QuickLoad binds target from os.Args, the environment and configFile.
// ErrConfigNotFound is returned after a successful bind when the file does not exist.
func QuickLoad(target any, envPrefix, configFile string) error {
	src, loadErr := StandardSource(envPrefix, configFile, os.Args[1:])
	if src == nil {
		return loadErr
	}
	if err := Quick(src, target); err != nil {
		return err
	}
	return loadErr
}

// MustQuick is like Quick but panics on error
func MustQuick(src Source, target any) {
	if err := Quick(src, target); err != nil {
		panic(fmt.Sprintf("confbind bind failed: %v", err))
	}
}

// Debug returns a formatted listing of every value property of shape: its path, candidate keys,
// and the value resolved from src with its origin.
func (r *Registry) Debug(src Source, shape reflect.Type) (string, error) {
	infos, err := r.Keys(shape)
	if err != nil {
		return "", err
	}
	inst, err := r.Dynamic(src, shape)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Configuration Debug Info:\n")
	for _, info := range infos {
		fmt.Fprintf(&b, "  %s (%v):\n", info.Path, info.Type)
		fmt.Fprintf(&b, "    Keys: %s\n", strings.Join(info.Keys, ", "))
		v, err := inst.Get(info.Path)
		switch {
		case err != nil:
			fmt.Fprintf(&b, "    Error: %v\n", err)
		case v == nil:
			b.WriteString("    Value: <absent>\n")
		default:
			fmt.Fprintf(&b, "    Value: %v\n", v)
		}
	}
	return b.String(), nil
}
