package relay

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/pscheid92/wsbroker/internal/domain"
	"github.com/stretchr/testify/require"
)

// mockConn records everything the hub sends to it.
type mockConn struct {
	id string

	mu          sync.Mutex
	frames      []domain.Frame
	pings       int
	closeReason string
	closed      bool
	terminated  bool
	sendErr     error
	onPing      func()
}

func newMockConn(id string) *mockConn {
	return &mockConn{id: id}
}

func (m *mockConn) ID() string { return m.id }

func (m *mockConn) Send(frame domain.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.frames = append(m.frames, frame)
	return nil
}

func (m *mockConn) Ping() error {
	m.mu.Lock()
	m.pings++
	onPing := m.onPing
	m.mu.Unlock()

	if onPing != nil {
		onPing()
	}
	return nil
}

func (m *mockConn) Close(reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.closeReason = reason
	return nil
}

func (m *mockConn) Terminate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminated = true
	return nil
}

func (m *mockConn) getFrames() []domain.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]domain.Frame, len(m.frames))
	copy(result, m.frames)
	return result
}

func (m *mockConn) framesOf(frameType domain.FrameType) []domain.Frame {
	var result []domain.Frame
	for _, f := range m.getFrames() {
		if f.Type == frameType {
			result = append(result, f)
		}
	}
	return result
}

func (m *mockConn) getPings() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pings
}

func (m *mockConn) isTerminated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terminated
}

func (m *mockConn) setSendErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

func (m *mockConn) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = nil
}

// lifecycleMessages decodes every control envelope conn received.
func lifecycleMessages(t *testing.T, conn *mockConn) []domain.LifecycleMessage {
	t.Helper()
	var result []domain.LifecycleMessage
	for _, f := range conn.framesOf(domain.TextFrame) {
		var msg domain.LifecycleMessage
		require.NoError(t, json.Unmarshal(f.Data, &msg))
		result = append(result, msg)
	}
	return result
}
