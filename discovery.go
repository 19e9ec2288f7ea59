// FILE: lixenwraith/confbind/discovery.go
package confbind

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileDiscoveryOptions controls where DiscoverFile looks for a configuration file.
type FileDiscoveryOptions struct {
	// Name is the file base name, without extension.
	Name string
	// Extensions are tried in order within each directory.
	Extensions []string
	// Paths are searched before the working and XDG directories.
	Paths []string
	// EnvVar names a variable holding an explicit path.
	EnvVar string
	// CLIFlag is matched as "--config path" and "--config=path".
	CLIFlag       string
	UseXDG        bool
	UseCurrentDir bool
}

// DefaultDiscoveryOptions searches for appName with every supported extension, honoring
// APPNAME_CONFIG and --config.
func DefaultDiscoveryOptions(appName string) FileDiscoveryOptions {
	return FileDiscoveryOptions{
		Name:          appName,
		Extensions:    []string{".toml", ".yaml", ".yml", ".json", ".conf", ".config"},
		EnvVar:        strings.ToUpper(appName) + "_CONFIG",
		CLIFlag:       "--config",
		UseXDG:        true,
		UseCurrentDir: true,
	}
}

// DiscoverFile locates a configuration file. The CLI flag wins over the environment variable,
// which wins over the search paths. Nothing found returns ErrConfigNotFound.
func DiscoverFile(opts FileDiscoveryOptions, args []string) (string, error) {
	if path, ok := cliFlagValue(opts.CLIFlag, args); ok {
		return path, nil
	}
	if opts.EnvVar != "" {
		if path := os.Getenv(opts.EnvVar); path != "" {
			return path, nil
		}
	}
	for _, dir := range searchDirs(opts) {
		for _, ext := range opts.Extensions {
			path := filepath.Join(dir, opts.Name+ext)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrConfigNotFound, opts.Name)
}

// cliFlagValue returns the argument following flag, or the value of flag=value.
func cliFlagValue(flag string, args []string) (string, bool) {
	if flag == "" {
		return "", false
	}
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1], true
		}
		if v, ok := strings.CutPrefix(arg, flag+"="); ok {
			return v, true
		}
	}
	return "", false
}

func searchDirs(opts FileDiscoveryOptions) []string {
	dirs := append([]string(nil), opts.Paths...)
	if opts.UseCurrentDir {
		if cwd, err := os.Getwd(); err == nil {
			dirs = append(dirs, cwd)
		}
	}
	if opts.UseXDG {
		dirs = append(dirs, xdgDirs(opts.Name)...)
	}
	return dirs
}

// xdgDirs lists the per-user directory first, then the system ones.
func xdgDirs(appName string) []string {
	var dirs []string
	switch home := os.Getenv("XDG_CONFIG_HOME"); {
	case home != "":
		dirs = append(dirs, filepath.Join(home, appName))
	case os.Getenv("HOME") != "":
		dirs = append(dirs, filepath.Join(os.Getenv("HOME"), ".config", appName))
	}

	system := filepath.SplitList(os.Getenv("XDG_CONFIG_DIRS"))
	if len(system) == 0 {
		system = []string{"/etc/xdg", "/etc"}
	}
	for _, dir := range system {
		dirs = append(dirs, filepath.Join(dir, appName))
	}
	return dirs
}
