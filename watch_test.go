// FILE: lixenwraith/confbind/watch_test.go
package confbind

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastWatch() WatchOptions {
	return WatchOptions{
		PollInterval: MinPollInterval,
		Debounce:     50 * time.Millisecond,
		MaxWatchers:  4,
	}
}

// awaitEvent drains ch until match accepts an event or the timeout expires.
func awaitEvent(t *testing.T, ch <-chan string, match func(string) bool) string {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			require.True(t, ok, "watch channel closed")
			if match(ev) {
				return ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for watch event")
			return ""
		}
	}
}

func TestFileWatch(t *testing.T) {
	t.Run("NotifiesChangedKeys", func(t *testing.T) {
		path := writeFile(t, "watched.toml", "[server]\nport = 80\nhost = \"a\"\n")
		file, err := NewFileSource(path)
		require.NoError(t, err)
		defer file.StopWatch()

		ch := file.Watch(fastWatch())
		assert.True(t, file.IsWatching())
		assert.Equal(t, 1, file.WatcherCount())

		// longer content so the size differs even on coarse mtime filesystems
		require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 8080\nhost = \"a\"\n"), 0644))

		awaitEvent(t, ch, func(ev string) bool { return ev == "server.port" })
		assert.Eventually(t, func() bool {
			return file.Lookup("server.port", nil).String() == "8080"
		}, time.Second, SpinWaitInterval)
	})

	t.Run("ReloadErrorKeepsValues", func(t *testing.T) {
		path := writeFile(t, "broken.toml", "port = 80\n")
		file, err := NewFileSource(path)
		require.NoError(t, err)
		defer file.StopWatch()

		ch := file.Watch(fastWatch())
		require.NoError(t, os.WriteFile(path, []byte("port = = =\n"), 0644))

		ev := awaitEvent(t, ch, func(ev string) bool { return strings.HasPrefix(ev, EventReloadErrorPrefix) })
		assert.NotEqual(t, EventReloadErrorPrefix, ev)
		assert.Equal(t, "80", file.Lookup("port", nil).String())
	})

	t.Run("FileDeleted", func(t *testing.T) {
		path := writeFile(t, "gone.toml", "port = 80\n")
		file, err := NewFileSource(path)
		require.NoError(t, err)
		defer file.StopWatch()

		ch := file.Watch(fastWatch())
		require.NoError(t, os.Remove(path))
		awaitEvent(t, ch, func(ev string) bool { return ev == EventFileDeleted })
	})

	t.Run("StopClosesChannels", func(t *testing.T) {
		path := writeFile(t, "stop.toml", "port = 80\n")
		file, err := NewFileSource(path)
		require.NoError(t, err)

		a := file.Watch(fastWatch())
		b := file.Watch(fastWatch())
		assert.Equal(t, 2, file.WatcherCount())

		file.StopWatch()
		assert.False(t, file.IsWatching())
		assert.Zero(t, file.WatcherCount())
		for _, ch := range []<-chan string{a, b} {
			assert.Eventually(t, func() bool {
				select {
				case _, ok := <-ch:
					return !ok
				default:
					return false
				}
			}, time.Second, SpinWaitInterval)
		}
	})

	t.Run("SubscriberLimit", func(t *testing.T) {
		path := writeFile(t, "limit.toml", "port = 80\n")
		file, err := NewFileSource(path)
		require.NoError(t, err)
		defer file.StopWatch()

		opts := fastWatch()
		opts.MaxWatchers = 1
		first := file.Watch(opts)
		extra := file.Watch(opts)

		_, ok := <-extra
		assert.False(t, ok)
		assert.Equal(t, 1, file.WatcherCount())

		select {
		case _, ok := <-first:
			assert.True(t, ok, "first subscriber must stay open")
		default:
		}
	})
}
