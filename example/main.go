// FILE: lixenwraith/confbind/example/main.go
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/lixenwraith/confbind"
)

// Backend is one upstream of the proxy.
type Backend struct {
	_      confbind.Configuration
	Host   string `key:"host,hostname"`
	Port   int    `default:"80"`
	Weight int    `default:"1"`
}

// AppConfig showcases prefixes, fallbacks, lists and encrypted values.
type AppConfig struct {
	_ confbind.Configuration `prefix:"app"`

	Server struct {
		_       confbind.Configuration
		Host    string        `default:"localhost"`
		Port    int           `default:"8080"`
		Timeout time.Duration `fallback:"timeout" default:"30s"`
	}
	Backends []Backend `prefix:"backend" size:"1"`
	Tags     []string  `key:"tags"`
	Secret   string    `encrypted:"local"`
}

func main() {
	dir, err := os.MkdirTemp("", "confbind-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "config.toml")

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	dec, err := confbind.NewPassphraseDecryptor("local", "example passphrase", []byte("example salt"))
	if err != nil {
		log.Fatal(err)
	}
	secret, err := dec.Encrypt("s3cr3t")
	if err != nil {
		log.Fatal(err)
	}

	// PART 1: write a file with nested tables and an array of tables
	initial := fmt.Sprintf(`timeout = "5s"

[app]
tags = "blue,green"
secret = %q

[app.server]
port = 9090

[[app.backend]]
host = "10.0.0.1"

[[app.backend]]
hostname = "10.0.0.2"
weight = 3
`, secret)
	if err := os.WriteFile(path, []byte(initial), 0o644); err != nil {
		log.Fatal(err)
	}

	file, err := confbind.NewFileSource(path, confbind.WithFileLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	os.Setenv("EXAMPLE_APP_SERVER_HOST", "0.0.0.0")
	defer os.Unsetenv("EXAMPLE_APP_SERVER_HOST")
	src := confbind.Chain(confbind.NewEnvSource("EXAMPLE_"), file)

	reg := confbind.NewBuilder().
		WithProcessor(dec).
		WithLogger(logger).
		MustBuild()
	defer reg.Close()

	// PART 2: static binding
	cfg, err := confbind.BindNew[AppConfig](reg, src)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("server %s:%d timeout=%v", cfg.Server.Host, cfg.Server.Port, cfg.Server.Timeout)
	for i, b := range cfg.Backends {
		log.Printf("backend %d: %s:%d weight=%d", i, b.Host, b.Port, b.Weight)
	}
	log.Printf("tags=%v secret=%q", cfg.Tags, cfg.Secret)

	// PART 3: dynamic instance over a watched file
	inst, err := confbind.DynamicOf[AppConfig](reg, src)
	if err != nil {
		log.Fatal(err)
	}
	opts := confbind.DefaultWatchOptions()
	opts.PollInterval = confbind.MinPollInterval
	opts.Debounce = 50 * time.Millisecond
	changes := file.Watch(opts)
	defer file.StopWatch()

	time.Sleep(opts.PollInterval)
	updated := []byte(`[app.server]
port = 7070
`)
	if err := os.WriteFile(path, updated, 0o644); err != nil {
		log.Fatal(err)
	}
	select {
	case key := <-changes:
		log.Printf("changed: %s", key)
	case <-time.After(3 * time.Second):
		log.Println("no change observed")
	}
	port, _, err := confbind.Get[int](inst, "server.port")
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("dynamic server.port=%d", port)

	// PART 4: save and rebind
	out := filepath.Join(dir, "saved.toml")
	if err := reg.Save(out, cfg); err != nil {
		log.Fatal(err)
	}
	saved, err := confbind.NewFileSource(out)
	if err != nil {
		log.Fatal(err)
	}
	again, err := confbind.BindNew[AppConfig](reg, saved)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("round trip backends=%d secret=%q", len(again.Backends), again.Secret)

	debug, err := reg.Debug(src, reflect.TypeFor[AppConfig]())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Print(debug)
}
