package redispubsub_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tronic/redio/redisconn"
	"github.com/Tronic/redio/redispool"
	"github.com/Tronic/redio/redispubsub"
	"github.com/Tronic/redio/testbed"
)

func startPool(t *testing.T) (*testbed.Server, *redispool.Pool) {
	t.Helper()
	srv, err := testbed.Start("")
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	p, err := redispool.New(srv.URL(), redispool.Opts{Logger: redisconn.NopLogger{}})
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return srv, p
}

func publishSoon(t *testing.T, p *redispool.Pool, channel, payload string) {
	t.Helper()
	// Publish from another goroutine, retrying until the subscriber's
	// handshake has landed (receiver count > 0). Undelivered attempts are
	// simply dropped by the server, so the subscriber sees the payload once.
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for {
			res, err := p.DB().Publish(channel, payload).Do(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			if n, ok := res.(int64); ok && n > 0 {
				return
			}
			if time.Now().After(deadline) {
				t.Error("no subscriber showed up for", channel)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()
}

func TestPubSubDirectMessage(t *testing.T) {
	_, p := startPool(t)

	ps := p.PubSub("foo").StrDecode()
	defer ps.Close()

	publishSoon(t, p, "foo", "hello")
	msg, err := ps.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", msg)
}

func TestPubSubPatternWithChannel(t *testing.T) {
	_, p := startPool(t)

	ps := p.PubSub("foo").PSubscribe("chan*").StrDecode().WithChannel()
	defer ps.Close()

	publishSoon(t, p, "chan1", "hi")
	msg, err := ps.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, redispubsub.Message{Channel: "chan1", Payload: "hi"}, msg)
}

func TestPubSubModePersists(t *testing.T) {
	_, p := startPool(t)

	ps := p.PubSub("foo").AutoDecode()
	defer ps.Close()

	publishSoon(t, p, "foo", "10")
	msg, err := ps.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), msg)

	// Unlike a DB buffer, the decoding mode sticks between messages.
	publishSoon(t, p, "foo", `{"a":1}`)
	msg, err = ps.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, msg)
}

func TestPubSubLateSubscribe(t *testing.T) {
	_, p := startPool(t)

	ps := p.PubSub("first").StrDecode()
	defer ps.Close()

	publishSoon(t, p, "first", "one")
	msg, err := ps.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "one", msg)

	// Channels added after iteration started take effect on the next Next.
	ps.Subscribe("second")
	publishSoon(t, p, "second", "two")
	msg, err = ps.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "two", msg)
}

func TestPubSubDefaultModeKeepsBytes(t *testing.T) {
	_, p := startPool(t)

	ps := p.PubSub("bin")
	defer ps.Close()

	publishSoon(t, p, "bin", "raw")
	msg, err := ps.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), msg)
}

func TestPubSubClosedReceiver(t *testing.T) {
	_, p := startPool(t)

	ps := p.PubSub("foo")
	publishSoon(t, p, "foo", "x")
	_, err := ps.Next(context.Background())
	require.NoError(t, err)

	require.NoError(t, ps.Close())
	_, err = ps.Next(context.Background())
	assert.Error(t, err)
}

func TestPubSubCancellation(t *testing.T) {
	_, p := startPool(t)

	ps := p.PubSub("quiet")
	defer ps.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := ps.Next(ctx)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
