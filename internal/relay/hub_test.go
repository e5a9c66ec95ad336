package relay

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/wsbroker/internal/adapter/metrics"
	"github.com/pscheid92/wsbroker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, *metrics.RelayMetrics) {
	t.Helper()
	m := metrics.NewRelayMetrics(prometheus.NewRegistry())
	return NewHub(NewRegistry(), m), m
}

// joinAll joins conns in order and clears what they received while joining.
func joinAll(t *testing.T, hub *Hub, conns ...*mockConn) {
	t.Helper()
	for _, c := range conns {
		require.NoError(t, hub.Join(context.Background(), c))
	}
	for _, c := range conns {
		c.reset()
	}
}

func TestHub_JoinWelcomesAndAnnounces(t *testing.T) {
	hub, _ := newTestHub(t)
	b := newMockConn("B")
	joinAll(t, hub, b)

	a := newMockConn("A")
	require.NoError(t, hub.Join(context.Background(), a))

	assert.Equal(t, []domain.LifecycleMessage{{Type: domain.MessageWelcome, ClientID: "A", ClientCount: 2}}, lifecycleMessages(t, a))
	assert.Equal(t, []domain.LifecycleMessage{{Type: domain.MessageJoin, ClientID: "A", ClientCount: 2}}, lifecycleMessages(t, b))
}

func TestHub_FirstClientWelcome(t *testing.T) {
	hub, _ := newTestHub(t)
	a := newMockConn("A")

	require.NoError(t, hub.Join(context.Background(), a))

	assert.Equal(t, []domain.LifecycleMessage{{Type: domain.MessageWelcome, ClientID: "A", ClientCount: 1}}, lifecycleMessages(t, a))
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHub_WireFieldNames(t *testing.T) {
	hub, _ := newTestHub(t)
	a := newMockConn("A")
	require.NoError(t, hub.Join(context.Background(), a))

	frames := a.framesOf(domain.TextFrame)
	require.Len(t, frames, 1)
	assert.JSONEq(t, `{"type":"welcome","clientId":"A","clientCount":1}`, string(frames[0].Data))
}

func TestHub_RelayExcludesSender(t *testing.T) {
	hub, m := newTestHub(t)
	a, b, c := newMockConn("A"), newMockConn("B"), newMockConn("C")
	joinAll(t, hub, a, b, c)

	payload := []byte{0x00, 0xff, 0x10, 'h', 'i'}
	hub.Route(context.Background(), a, domain.BinaryFrame, payload)

	assert.Empty(t, a.getFrames())
	for _, recv := range []*mockConn{b, c} {
		frames := recv.getFrames()
		require.Len(t, frames, 1, "receiver %s", recv.ID())
		assert.Equal(t, domain.BinaryFrame, frames[0].Type)
		assert.Equal(t, payload, frames[0].Data)
	}
	assert.InDelta(t, 1, testutil.ToFloat64(m.MessagesRelayed), 0)
	assert.InDelta(t, len(payload), testutil.ToFloat64(m.BytesRelayed), 0)
}

func TestHub_RelayPreservesSenderOrder(t *testing.T) {
	hub, _ := newTestHub(t)
	a, b := newMockConn("A"), newMockConn("B")
	joinAll(t, hub, a, b)

	for i := range 10 {
		hub.Relay(context.Background(), a, []byte{byte(i)})
	}

	frames := b.getFrames()
	require.Len(t, frames, 10)
	for i, f := range frames {
		assert.Equal(t, []byte{byte(i)}, f.Data)
	}
}

func TestHub_RejectsTextFrames(t *testing.T) {
	hub, m := newTestHub(t)
	a, b, c := newMockConn("A"), newMockConn("B"), newMockConn("C")
	joinAll(t, hub, a, b, c)

	hub.Route(context.Background(), a, domain.TextFrame, []byte(`{"type":"join"}`))

	assert.Empty(t, b.getFrames())
	assert.Empty(t, c.getFrames())

	frames := a.getFrames()
	require.Len(t, frames, 1)
	assert.Equal(t, domain.TextFrame, frames[0].Type)

	var msg domain.ErrorMessage
	require.NoError(t, json.Unmarshal(frames[0].Data, &msg))
	assert.Equal(t, domain.NewError("Only binary messages are supported"), msg)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ProtocolViolations), 0)
	assert.Equal(t, 3, hub.ClientCount(), "violation keeps the connection open")
}

func TestHub_SendFailureDoesNotAbortFanOut(t *testing.T) {
	hub, m := newTestHub(t)
	a, broken, full, ok := newMockConn("A"), newMockConn("broken"), newMockConn("full"), newMockConn("ok")
	joinAll(t, hub, a, broken, full, ok)
	broken.setSendErr(domain.ErrConnectionClosed)
	full.setSendErr(domain.ErrSendQueueFull)

	hub.Relay(context.Background(), a, []byte("payload"))

	assert.Len(t, ok.getFrames(), 1)
	assert.Empty(t, a.getFrames())
	assert.InDelta(t, 1, testutil.ToFloat64(m.SendFailures.WithLabelValues("closed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SendFailures.WithLabelValues("queue_full")), 0)
}

func TestHub_LeaveAnnouncesToRemaining(t *testing.T) {
	hub, _ := newTestHub(t)
	a, b, c := newMockConn("A"), newMockConn("B"), newMockConn("C")
	joinAll(t, hub, a, b, c)

	assert.True(t, hub.Leave(context.Background(), a))

	want := []domain.LifecycleMessage{{Type: domain.MessageLeave, ClientID: "A", ClientCount: 2}}
	assert.Equal(t, want, lifecycleMessages(t, b))
	assert.Equal(t, want, lifecycleMessages(t, c))
	assert.Empty(t, a.getFrames(), "departed client gets nothing")
	assert.Equal(t, 2, hub.ClientCount())
}

func TestHub_LeaveTwiceAnnouncesOnce(t *testing.T) {
	hub, _ := newTestHub(t)
	a, b := newMockConn("A"), newMockConn("B")
	joinAll(t, hub, a, b)

	assert.True(t, hub.Leave(context.Background(), a))
	assert.False(t, hub.Leave(context.Background(), a))

	assert.Len(t, lifecycleMessages(t, b), 1)
}

func TestHub_DuplicateIdentityIsNotAnnounced(t *testing.T) {
	hub, _ := newTestHub(t)
	original, other := newMockConn("A"), newMockConn("B")
	joinAll(t, hub, original, other)

	impostor := newMockConn("A")
	err := hub.Join(context.Background(), impostor)

	require.ErrorIs(t, err, domain.ErrDuplicateIdentity)
	assert.True(t, impostor.isTerminated())
	assert.Empty(t, impostor.getFrames())
	assert.Empty(t, other.getFrames())
	assert.Equal(t, 2, hub.ClientCount())

	assert.False(t, hub.Leave(context.Background(), impostor), "impostor must not remove the original")
	assert.Equal(t, 2, hub.ClientCount())
}

func TestHub_SizeMatchesOpenConnections(t *testing.T) {
	hub, m := newTestHub(t)
	conns := []*mockConn{newMockConn("1"), newMockConn("2"), newMockConn("3"), newMockConn("4")}
	joinAll(t, hub, conns...)

	hub.Leave(context.Background(), conns[1])
	hub.Leave(context.Background(), conns[3])
	require.NoError(t, hub.Join(context.Background(), newMockConn("5")))

	assert.Equal(t, 3, hub.ClientCount())
	assert.InDelta(t, 3, testutil.ToFloat64(m.ActiveConnections), 0)
	assert.InDelta(t, 5, testutil.ToFloat64(m.ConnectionsTotal), 0)
}

func TestHub_Acknowledge(t *testing.T) {
	hub, _ := newTestHub(t)
	a := newMockConn("A")
	joinAll(t, hub, a)

	hub.registry.MarkAllSuspect()
	hub.Acknowledge(a)

	state, ok := hub.registry.State(a)
	require.True(t, ok)
	assert.Equal(t, domain.Alive, state)
}

func TestHub_Shutdown(t *testing.T) {
	hub, _ := newTestHub(t)
	a, b := newMockConn("A"), newMockConn("B")
	joinAll(t, hub, a, b)
	require.NoError(t, hub.Ready(context.Background()))

	hub.Shutdown(context.Background())

	for _, c := range []*mockConn{a, b} {
		c.mu.Lock()
		assert.True(t, c.closed)
		assert.Equal(t, "Server shutting down", c.closeReason)
		c.mu.Unlock()
	}
	require.ErrorIs(t, hub.Ready(context.Background()), domain.ErrShuttingDown)

	late := newMockConn("late")
	require.ErrorIs(t, hub.Join(context.Background(), late), domain.ErrShuttingDown)
	assert.True(t, late.isTerminated())
}

func TestHub_NilMetrics(t *testing.T) {
	hub := NewHub(NewRegistry(), nil)
	a, b := newMockConn("A"), newMockConn("B")

	require.NotPanics(t, func() {
		_ = hub.Join(context.Background(), a)
		_ = hub.Join(context.Background(), b)
		hub.Relay(context.Background(), a, []byte("x"))
		hub.Leave(context.Background(), b)
	})
}
