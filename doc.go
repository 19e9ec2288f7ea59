// File: lixenwraith/confbind/doc.go

// Package confbind binds typed configuration structs to key/value sources.
//
// A configuration shape is a struct. Its schema (keys, prefixes, defaults, nested configurations and
// lists of them) is extracted once, either from struct tags (TagExtractor, the default) or from field
// names and zero values (ConventionExtractor), and cached in a bounded LRU.
//
// Features:
//   - Ordered candidate keys per property: every key under every prefix, then fallback prefixes,
//     then a fallback key
//   - Tri-state values and defaults: absent, explicit null, or a string
//   - Value processors between lookup and conversion, e.g. XChaCha20-Poly1305 decryption
//   - Priority-ordered type converters for scalars, durations, times, URLs, IPs, pointers,
//     lists, maps and whole structs
//   - Sources for maps, TOML/JSON/YAML files with polling watch, environment and command line
//   - Static binding into structs, dynamic instances re-resolved on every read, TOML save
//
// Quick Start:
//
//	type Server struct {
//	    _       confbind.Configuration `prefix:"server"`
//	    Host    string                 `key:"host,hostname" default:"localhost"`
//	    Port    int                    `default:"8080"`
//	    Timeout time.Duration          `fallback:"timeout" default:"30s"`
//	    Token   string                 `encrypted:"vault"`
//	}
//
//	src, err := confbind.StandardSource("MYAPP_", "config.toml", os.Args[1:])
//	if err != nil && !errors.Is(err, confbind.ErrConfigNotFound) {
//	    log.Fatal(err)
//	}
//
//	reg := confbind.NewBuilder().
//	    WithProcessor(vault).
//	    WithLogger(logger).
//	    MustBuild()
//	defer reg.Close()
//
//	var cfg Server
//	if err := reg.Bind(src, &cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// Struct tags:
//
//	key        comma separated keys, default the toml tag name or the lowerCamel field name
//	fallback   key tried after every prefixed key
//	prefix     prefixes of a nested configuration or list, "-" for none
//	default    default string of a value property
//	cfg        flags: "-" ignore, reset, nulldefault, abstract (marker only), value
//	encrypted  name of the processor that decrypts the value
//	converter  name of the converter to use instead of the first applicable one
//	attr       k=v pairs passed to sources and converters
//	name       property name, default the field name
//	size       default element count of a list
//	defaults   k=v pairs for a nested configuration, one ';' group per list element
//
// Thread Safety:
// Registries, model providers, converters and the provided sources are safe for concurrent use.
// Bound structs are plain values owned by the caller.
package confbind
