package natsync

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net"
	"testing"
	"time"

	"github.com/jitinsharma/sunshine-wear/internal/asset"
	"github.com/jitinsharma/sunshine-wear/internal/datasync"
	"github.com/jitinsharma/sunshine-wear/internal/weather"
	"github.com/nats-io/nats-server/v2/server"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 5 * time.Second
	tick    = 20 * time.Millisecond
)

var record = []byte(`{"HIGH":"75","LOW":"60","TIME":"14:00"}`)

func runServer(t *testing.T, port int, storeDir string) *server.Server {
	t.Helper()
	opts := natsserver.DefaultTestOptions
	opts.Port = port
	opts.JetStream = true
	opts.StoreDir = storeDir
	return natsserver.RunServer(&opts)
}

func startServer(t *testing.T) *server.Server {
	t.Helper()
	s := runServer(t, -1, t.TempDir())
	t.Cleanup(s.Shutdown)
	return s
}

func testConfig(url string) Config {
	return Config{
		URL:            url,
		SubjectPrefix:  "sunshine.data",
		Stream:         "TEST_DATA",
		AssetBucket:    "assets",
		ConnectTimeout: 2 * time.Second,
	}
}

func newTestPublisher(t *testing.T, url string) *Publisher {
	t.Helper()
	publisher, err := NewPublisher(testConfig(url))
	require.NoError(t, err)
	t.Cleanup(publisher.Close)
	return publisher
}

func newTestChannel(t *testing.T, url string) *datasync.Channel {
	t.Helper()
	channel := datasync.NewChannel(NewTransport(testConfig(url)), datasync.Config{
		Topic:   "weather",
		Backoff: datasync.BackoffConfig{InitialDelay: 50 * time.Millisecond, MaxDelay: 200 * time.Millisecond},
		Loader:  asset.LoaderConfig{Timeout: 2 * time.Second},
	}, nil)
	channel.Start(context.Background())
	t.Cleanup(channel.Stop)
	return channel
}

func iconBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func isDone(s datasync.Session) bool {
	select {
	case <-s.Done():
		return true
	default:
		return false
	}
}

func TestIconWithBucketCreatedAfterSubscribing(t *testing.T) {
	s := startServer(t)
	channel := newTestChannel(t, s.ClientURL())

	require.Eventually(t, func() bool { return channel.State() == datasync.Subscribed }, waitFor, tick)

	// no deadline on purpose
	require.NoError(t, newTestPublisher(t, s.ClientURL()).Publish(context.Background(), "weather", record, "clear.png", iconBytes(t)))

	require.Eventually(t, func() bool {
		latest := channel.Latest()
		return latest != nil && latest.IconState() == weather.IconPresent
	}, waitFor, tick)
	assert.Equal(t, "75", channel.Latest().High())
	assert.NotNil(t, channel.Latest().Icon())
}

func TestRecordPushedBeforeSubscribing(t *testing.T) {
	s := startServer(t)
	require.NoError(t, newTestPublisher(t, s.ClientURL()).Publish(context.Background(), "weather", record, "", nil))

	channel := newTestChannel(t, s.ClientURL())

	require.Eventually(t, func() bool { return channel.Latest() != nil }, waitFor, tick)
	assert.Equal(t, "75", channel.Latest().High())
	assert.Equal(t, "60", channel.Latest().Low())
	assert.Equal(t, weather.IconAbsent, channel.Latest().IconState())
}

func TestOnlyLastRecordIsReplayed(t *testing.T) {
	s := startServer(t)
	publisher := newTestPublisher(t, s.ClientURL())
	require.NoError(t, publisher.Publish(context.Background(), "weather", []byte(`{"HIGH":"70","LOW":"50","TIME":"08:00"}`), "", nil))
	require.NoError(t, publisher.Publish(context.Background(), "weather", record, "", nil))

	channel := newTestChannel(t, s.ClientURL())

	require.Eventually(t, func() bool { return channel.Latest() != nil }, waitFor, tick)
	assert.Equal(t, "75", channel.Latest().High())
	assert.Equal(t, uint64(1), channel.Latest().Seq())
}

func TestPeerLossKeepsSnapshotAndReconnects(t *testing.T) {
	storeDir := t.TempDir()
	s := runServer(t, -1, storeDir)
	port := s.Addr().(*net.TCPAddr).Port
	url := s.ClientURL()

	channel := newTestChannel(t, url)
	require.NoError(t, newTestPublisher(t, url).Publish(context.Background(), "weather", record, "", nil))
	require.Eventually(t, func() bool { return channel.Latest() != nil }, waitFor, tick)

	s.Shutdown()
	s.WaitForShutdown()

	require.Eventually(t, func() bool { return channel.State() != datasync.Subscribed }, waitFor, tick)
	require.NotNil(t, channel.Latest())
	assert.Equal(t, "75", channel.Latest().High())

	restarted := runServer(t, port, storeDir)
	t.Cleanup(restarted.Shutdown)

	require.Eventually(t, func() bool { return channel.State() == datasync.Subscribed }, waitFor, tick)
	assert.Equal(t, "75", channel.Latest().High())
}

func TestSessionFetchOpensBucketLazily(t *testing.T) {
	s := startServer(t)

	session, err := NewTransport(testConfig(s.ClientURL())).Connect(context.Background())
	require.NoError(t, err)
	defer session.Close()

	_, err = session.Fetch(context.Background(), "clear.png")
	assert.ErrorIs(t, err, errNoAssetStore)

	icon := iconBytes(t)
	require.NoError(t, newTestPublisher(t, s.ClientURL()).Publish(context.Background(), "weather", record, "clear.png", icon))

	select {
	case n := <-session.Notifications():
		assert.Equal(t, "weather", n.Topic)
		assert.Equal(t, asset.Handle("clear.png"), n.Icon)
		assert.Equal(t, record, n.Payload)
	case <-time.After(waitFor):
		t.Fatal("no notification")
	}

	data, err := session.Fetch(context.Background(), "clear.png")
	require.NoError(t, err)
	assert.Equal(t, icon, data)
}

func TestSessionClose(t *testing.T) {
	s := startServer(t)

	session, err := NewTransport(testConfig(s.ClientURL())).Connect(context.Background())
	require.NoError(t, err)
	assert.False(t, isDone(session))

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
	assert.True(t, isDone(session))
	assert.Error(t, session.Err())
}

func TestSessionEndsWhenServerStops(t *testing.T) {
	s := runServer(t, -1, t.TempDir())

	session, err := NewTransport(testConfig(s.ClientURL())).Connect(context.Background())
	require.NoError(t, err)
	defer session.Close()

	s.Shutdown()

	require.Eventually(t, func() bool { return isDone(session) }, waitFor, tick)
	assert.Error(t, session.Err())
}

func TestConnectFailsWithoutServer(t *testing.T) {
	s := runServer(t, -1, t.TempDir())
	url := s.ClientURL()
	s.Shutdown()
	s.WaitForShutdown()

	_, err := NewTransport(testConfig(url)).Connect(context.Background())
	assert.Error(t, err)
}
