package main

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/rostersync/client"
	"github.com/momentics/rostersync/server"
	"github.com/momentics/rostersync/transport/tcp"
)

func TestRunClientPrintsRoster(t *testing.T) {
	srv, err := server.New(server.DefaultConfig())
	require.NoError(t, err)
	ln, err := tcp.Listen(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	opts := func(payload string) runOptions {
		cfg := client.DefaultConfig()
		cfg.Host, cfg.Port = host, port
		return runOptions{cfg: cfg, payload: payload, interval: 10 * time.Millisecond, count: 3, logLevel: "error"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// keep a peer in the roster while the second client runs
	peerCtx, stopPeer := context.WithCancel(ctx)
	peerDone := make(chan error, 1)
	go func() {
		o := opts("peer")
		o.count = 0
		peerDone <- runClient(peerCtx, &bytes.Buffer{}, o)
	}()
	require.Eventually(t, func() bool { return srv.ClientCount() == 1 }, 5*time.Second, time.Millisecond)

	var out bytes.Buffer
	require.NoError(t, runClient(ctx, &out, opts("hello")))
	stopPeer()
	require.NoError(t, <-peerDone)

	assert.Contains(t, out.String(), "self=2 peers=1")
	assert.Contains(t, out.String(), `id=1    "peer"`)
}

func TestTrimZeros(t *testing.T) {
	assert.Equal(t, []byte("ab"), trimZeros([]byte{'a', 'b', 0, 0}))
	assert.Empty(t, trimZeros([]byte{0, 0}))
}
