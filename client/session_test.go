package client_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/rostersync/api"
	"github.com/momentics/rostersync/client"
	"github.com/momentics/rostersync/control"
	"github.com/momentics/rostersync/fake"
	"github.com/momentics/rostersync/protocol"
)

const waitFor = 2 * time.Second

var errDown = errors.New("server down")

func newSession(t *testing.T, tr *fake.Transport, maxClients, size int, opts ...client.Option) (*client.Session, *protocol.Record) {
	t.Helper()
	cfg := client.DefaultConfig()
	cfg.MaxClients = maxClients
	cfg.RecordSize = size
	cfg.RetryDelay = time.Millisecond

	local := &protocol.Record{Payload: make([]byte, size-protocol.IDSize)}
	s, err := client.NewSession(cfg, local, append([]client.Option{client.WithTransport(tr)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, local
}

func waitState(t *testing.T, s *client.Session, want api.State) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == want }, waitFor, time.Millisecond,
		"session never reached %s", want)
}

func drain(s *client.Session) map[uint32]string {
	out := map[uint32]string{}
	for r := s.Next(); r != nil; r = s.Next() {
		out[r.ID] = string(r.Payload)
	}
	return out
}

// publishAndRead runs one full application cycle and returns the roster.
func publishAndRead(t *testing.T, s *client.Session) map[uint32]string {
	t.Helper()
	waitState(t, s, api.StateWrite)
	s.Publish()
	waitState(t, s, api.StateRead)
	return drain(s)
}

func violates(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a contract violation panic")
		err, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, api.ErrContractViolation)
	}()
	fn()
}

func TestScenarioAddAndExpire(t *testing.T) {
	tr := fake.NewTransport()
	tr.QueueReply(fake.EncodeReply(2, fake.Rec(1, "AAAA"), fake.Rec(3, "BBBB")))
	tr.QueueReply(fake.EncodeReply(2, fake.Rec(1, "CCCC")))

	s, _ := newSession(t, tr, 4, 8)
	assert.Equal(t, api.StateBusy, s.State())
	assert.False(t, s.Running())
	s.Start()
	assert.True(t, s.Running())

	assert.Equal(t, map[uint32]string{1: "AAAA", 3: "BBBB"}, publishAndRead(t, s))
	assert.Equal(t, int32(2), s.AssignedID())

	assert.Equal(t, map[uint32]string{1: "CCCC"}, publishAndRead(t, s), "id 3 left the broadcast")
	assert.Equal(t, int32(2), s.AssignedID())
}

func TestPublishSendsLocalRecordWithAssignedID(t *testing.T) {
	tr := fake.NewTransport()
	tr.QueueReply(fake.EncodeReply(2))
	tr.QueueReply(fake.EncodeReply(2))

	s, local := newSession(t, tr, 4, 8)
	s.Start()

	copy(local.Payload, "MINE")
	publishAndRead(t, s)
	copy(local.Payload, "NEXT")
	publishAndRead(t, s)

	sent := tr.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, fake.EncodeRecords(fake.Rec(0, "MINE")), sent[0], "first send carries no id yet")
	assert.Equal(t, fake.EncodeRecords(fake.Rec(2, "NEXT")), sent[1])
}

func TestPublishCopiesBeforeReturning(t *testing.T) {
	tr := fake.NewTransport()
	tr.QueueReply(fake.EncodeReply(1))

	s, local := newSession(t, tr, 4, 8)
	s.Start()
	waitState(t, s, api.StateWrite)

	copy(local.Payload, "KEEP")
	s.Publish()
	copy(local.Payload, "LATE")
	waitState(t, s, api.StateRead)
	drain(s)

	require.Len(t, tr.Sent(), 1)
	assert.Equal(t, "KEEP", string(tr.Sent()[0][protocol.IDSize:]))
}

func TestStateCycle(t *testing.T) {
	tr := fake.NewTransport()
	for i := 0; i < 3; i++ {
		tr.QueueReply(fake.EncodeReply(1, fake.Rec(2, "PEER")))
	}
	s, _ := newSession(t, tr, 4, 8)
	s.Start()

	for i := 0; i < 3; i++ {
		waitState(t, s, api.StateWrite)
		s.Publish()
		assert.NotEqual(t, api.StateWrite, s.State())
		waitState(t, s, api.StateRead)

		require.NotNil(t, s.Next())
		assert.Equal(t, api.StateRead, s.State())
		require.Nil(t, s.Next())
		assert.NotEqual(t, api.StateRead, s.State())
	}
}

func TestContractViolations(t *testing.T) {
	tr := fake.NewTransport()
	tr.QueueReply(fake.EncodeReply(1, fake.Rec(2, "PEER")))
	s, _ := newSession(t, tr, 4, 8)

	violates(t, s.Publish) // busy, not started
	violates(t, func() { s.Next() })

	s.Start()
	violates(t, s.Start)

	waitState(t, s, api.StateWrite)
	violates(t, func() { s.Next() })
	violates(t, func() { s.Snapshot() })

	s.Publish()
	waitState(t, s, api.StateRead)
	violates(t, s.Publish)

	require.NotNil(t, s.Next())
	violates(t, func() { s.Snapshot() })
	require.Nil(t, s.Next())
	violates(t, func() { s.Next() }) // draining twice
}

func TestStartAfterClosePanics(t *testing.T) {
	s, _ := newSession(t, fake.NewTransport(), 4, 8)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	violates(t, s.Start)
}

func TestSendRetriesResetAssignedID(t *testing.T) {
	tr := fake.NewTransport()
	tr.QueueReply(fake.EncodeReply(2, fake.Rec(1, "AAAA")))
	tr.QueueReply(fake.EncodeReply(2, fake.Rec(1, "BBBB")))

	type obs struct {
		assigned int32
		state    api.State
	}
	var (
		mu   sync.Mutex
		seen []obs
		sess *client.Session
	)
	tr.OnSend(func(int) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, obs{sess.AssignedID(), sess.State()})
	})

	sess, _ = newSession(t, tr, 4, 8)
	sess.Start()
	publishAndRead(t, sess)
	require.Equal(t, int32(2), sess.AssignedID())

	tr.FailSends(errDown, errDown)
	assert.Equal(t, map[uint32]string{1: "BBBB"}, publishAndRead(t, sess))
	assert.Equal(t, int32(2), sess.AssignedID())
	assert.Equal(t, 4, tr.SendAttempts())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 4)
	assert.Equal(t, int32(2), seen[1].assigned, "still assigned before the first failure")
	assert.Equal(t, int32(0), seen[2].assigned, "reset after first failure")
	assert.Equal(t, int32(0), seen[3].assigned, "reset after second failure")
	for _, o := range seen[1:] {
		assert.Equal(t, api.StateBusy, o.state, "no read phase before a send succeeds")
	}
}

func TestFirstSendsFailBeforeAnyRead(t *testing.T) {
	tr := fake.NewTransport()
	tr.FailSends(errDown, errDown)
	tr.QueueReply(fake.EncodeReply(3))

	s, _ := newSession(t, tr, 4, 8)
	s.Start()
	waitState(t, s, api.StateWrite)
	s.Publish()
	waitState(t, s, api.StateRead)

	assert.Equal(t, 3, tr.SendAttempts())
	assert.Len(t, tr.Sent(), 1)
	assert.Equal(t, int32(3), s.AssignedID())
	assert.Empty(t, drain(s))
}

func TestHeaderFailureResends(t *testing.T) {
	tr := fake.NewTransport()
	tr.FailRecvs(api.ErrReset)
	tr.QueueReply(fake.EncodeReply(2, fake.Rec(1, "LOST")))
	tr.QueueReply(fake.EncodeReply(2, fake.Rec(1, "GOOD")))

	s, local := newSession(t, tr, 4, 8)
	s.Start()
	copy(local.Payload, "SAME")

	assert.Equal(t, map[uint32]string{1: "GOOD"}, publishAndRead(t, s))
	sent := tr.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, sent[0], sent[1], "recovery re-sends the same record")
}

func TestRecordFailureResendsAndRecovers(t *testing.T) {
	tr := fake.NewTransport()
	tr.QueueReply(fake.EncodeReply(2, fake.Rec(1, "AAAA"), fake.Rec(3, "BBBB")))
	partial := fake.EncodeReply(2, fake.Rec(1, "CCCC"), fake.Rec(3, "DDDD"))
	tr.QueueTruncatedReply(partial[:protocol.HeaderSize+8+3])
	tr.QueueReply(fake.EncodeReply(2, fake.Rec(3, "EEEE")))

	s, _ := newSession(t, tr, 4, 8)
	s.Start()
	publishAndRead(t, s)

	assert.Equal(t, map[uint32]string{3: "EEEE"}, publishAndRead(t, s))
	assert.Equal(t, 3, tr.SendAttempts())
	assert.Equal(t, int32(2), s.AssignedID())
}

func TestOutOfRangeIDsDiscarded(t *testing.T) {
	tr := fake.NewTransport()
	tr.QueueReply(fake.EncodeReply(1,
		fake.Rec(4, "EDGE"), fake.Rec(0, "ZERO"), fake.Rec(1<<20, "HUGE"), fake.Rec(3, "LAST"),
	))
	m := control.NewSessionMetrics()
	s, _ := newSession(t, tr, 4, 8, client.WithMetrics(m))
	s.Start()

	assert.Equal(t, map[uint32]string{0: "ZERO", 3: "LAST"}, publishAndRead(t, s))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Discarded))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RosterSize))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles))
}

func TestDuplicateIDUpdatesInPlace(t *testing.T) {
	tr := fake.NewTransport()
	tr.QueueReply(fake.EncodeReply(1, fake.Rec(2, "OLD!"), fake.Rec(2, "NEW!")))
	s, _ := newSession(t, tr, 4, 8)
	s.Start()

	assert.Equal(t, map[uint32]string{2: "NEW!"}, publishAndRead(t, s))
}

func TestSnapshotReleasesWorker(t *testing.T) {
	tr := fake.NewTransport()
	tr.QueueReply(fake.EncodeReply(1, fake.Rec(2, "PEER"), fake.Rec(3, "MORE")))
	tr.QueueReply(fake.EncodeReply(1, fake.Rec(2, "GONE")))
	s, _ := newSession(t, tr, 4, 8)
	s.Start()

	waitState(t, s, api.StateWrite)
	s.Publish()
	waitState(t, s, api.StateRead)
	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, uint32(2), snap[0].ID)
	assert.Equal(t, uint32(3), snap[1].ID)

	assert.Equal(t, map[uint32]string{2: "GONE"}, publishAndRead(t, s))
	assert.Equal(t, "PEER", string(snap[0].Payload), "snapshot is detached from the roster")
}

func TestAbandonedIterationParksWorker(t *testing.T) {
	tr := fake.NewTransport()
	tr.QueueReply(fake.EncodeReply(1, fake.Rec(2, "PEER"), fake.Rec(3, "MORE")))
	tr.QueueReply(fake.EncodeReply(1))
	s, _ := newSession(t, tr, 4, 8)
	s.Start()

	waitState(t, s, api.StateWrite)
	s.Publish()
	waitState(t, s, api.StateRead)
	require.NotNil(t, s.Next())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, api.StateRead, s.State())
	assert.Len(t, tr.Sent(), 1)

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Close blocked on a parked worker")
	}
	assert.False(t, s.Running())
}

func TestCloseInterruptsRetryLoop(t *testing.T) {
	tr := fake.NewTransport()
	errs := make([]error, 1000)
	for i := range errs {
		errs[i] = errDown
	}
	tr.FailSends(errs...)

	cfg := client.DefaultConfig()
	cfg.MaxClients = 4
	cfg.RecordSize = 8
	cfg.RetryDelay = 50 * time.Millisecond
	s, err := client.NewSession(cfg, &protocol.Record{Payload: make([]byte, 4)}, client.WithTransport(tr))
	require.NoError(t, err)
	s.Start()
	waitState(t, s, api.StateWrite)
	s.Publish()
	require.Eventually(t, func() bool { return tr.SendAttempts() > 0 }, waitFor, time.Millisecond)

	start := time.Now()
	require.NoError(t, s.Close())
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, tr.Closed())
	assert.Equal(t, int32(0), s.AssignedID())
	assert.Equal(t, api.StateBusy, s.State())
}

func TestNewSessionValidation(t *testing.T) {
	good := func() *client.Config {
		cfg := client.DefaultConfig()
		cfg.RecordSize = 8
		return cfg
	}
	payload := func() *protocol.Record { return &protocol.Record{Payload: make([]byte, 4)} }

	cases := map[string]struct {
		cfg   func() *client.Config
		local *protocol.Record
	}{
		"nil local":      {good, nil},
		"payload size":   {good, &protocol.Record{Payload: make([]byte, 5)}},
		"preset id":      {good, &protocol.Record{ID: 7, Payload: make([]byte, 4)}},
		"no max clients": {func() *client.Config { c := good(); c.MaxClients = 0; return c }, payload()},
		"tiny record":    {func() *client.Config { c := good(); c.RecordSize = 3; return c }, payload()},
		"no host":        {func() *client.Config { c := good(); c.Host = ""; return c }, payload()},
		"bad network":    {func() *client.Config { c := good(); c.Network = "udp"; return c }, payload()},
		"negative delay": {func() *client.Config { c := good(); c.RetryDelay = -1; return c }, payload()},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := client.NewSession(tc.cfg(), tc.local)
			assert.ErrorIs(t, err, api.ErrInvalidConfig)
		})
	}
}

func TestFailedConstructionClosesSuppliedTransport(t *testing.T) {
	tr := fake.NewTransport()
	cfg := client.DefaultConfig()
	cfg.MaxClients = 0
	_, err := client.NewSession(cfg, &protocol.Record{}, client.WithTransport(tr))
	require.Error(t, err)
	assert.True(t, tr.Closed())
}

// logBuffer is a goroutine-safe log sink.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) count(substr string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), substr)
}

func TestRepeatedFailuresWarnOncePerCycle(t *testing.T) {
	const drops = 20
	tr := fake.NewTransport()
	resets := make([]error, drops)
	for i := range resets {
		resets[i] = api.ErrReset
	}
	tr.FailRecvs(resets...)
	tr.FailSends(errDown, errDown)
	for i := 0; i <= drops; i++ {
		tr.QueueReply(fake.EncodeReply(1, fake.Rec(2, "PEER")))
	}

	logs := &logBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, _ := newSession(t, tr, 4, 8, client.WithLogger(logger))
	s.Start()

	assert.Equal(t, map[uint32]string{2: "PEER"}, publishAndRead(t, s))
	assert.Equal(t, drops+3, tr.SendAttempts())
	assert.Equal(t, 1, logs.count("level=WARN"))
	assert.Equal(t, 2, logs.count(`msg="send failed, retrying"`))
	assert.Equal(t, drops, logs.count(`msg="receive failed, resending"`))
	assert.Equal(t, 1, logs.count(`msg="cycle recovered"`))

	// the next clean cycle logs nothing above debug
	tr.QueueReply(fake.EncodeReply(1, fake.Rec(2, "PEER")))
	publishAndRead(t, s)
	assert.Equal(t, 1, logs.count("level=WARN"))
}
