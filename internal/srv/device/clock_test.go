package device

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jitinsharma/sunshine-wear/internal/srv/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimezoneFromLink(t *testing.T) {
	assert.Equal(t, "Europe/Paris", timezoneFromLink("/usr/share/zoneinfo/Europe/Paris"))
	assert.Equal(t, "UTC", timezoneFromLink("../usr/share/zoneinfo/UTC"))
	assert.Equal(t, "America/Argentina/Cordoba", timezoneFromLink("/usr/share/zoneinfo/posix/zoneinfo/America/Argentina/Cordoba"))
	assert.Empty(t, timezoneFromLink("/etc/some/file"))
}

func TestSystemTimezoneWithoutLink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "localtime")
	require.NoError(t, os.WriteFile(path, []byte("TZif"), 0600))

	assert.Empty(t, SystemTimezone(path))
	assert.Empty(t, SystemTimezone(filepath.Join(dir, "missing")))
}

func TestWatchTimezone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "localtime")
	require.NoError(t, os.Symlink("/usr/share/zoneinfo/Europe/Paris", path))

	clock := NewClock(path)
	require.NoError(t, clock.WatchTimezone())
	require.NoError(t, clock.WatchTimezone())
	defer clock.UnwatchTimezone()

	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Symlink("/usr/share/zoneinfo/Asia/Tokyo", path))

	select {
	case ev := <-clock.EventChannel():
		assert.Equal(t, event.TimezoneData{TzId: "Asia/Tokyo"}, ev.Data)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no time zone event")
	}
}

func TestUnwatchDoesNotBlockOnPendingEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "localtime")
	require.NoError(t, os.Symlink("/usr/share/zoneinfo/UTC", path))

	clock := NewClock(path)
	require.NoError(t, clock.WatchTimezone())

	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Symlink("/usr/share/zoneinfo/Europe/Rome", path))
	// nobody reads the event channel
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		clock.UnwatchTimezone()
		clock.UnwatchTimezone()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "unwatch blocked")
	}
}
