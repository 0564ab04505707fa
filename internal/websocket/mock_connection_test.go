package websocket

import (
	"errors"
	"sync"
	"time"
)

// mockConnection records writes and blocks reads until closed.
type mockConnection struct {
	mu      sync.Mutex
	written [][]byte
	types   []int
	closed  chan struct{}
	once    sync.Once
	writes  chan struct{}
}

func newMockConnection() *mockConnection {
	return &mockConnection{
		closed: make(chan struct{}),
		writes: make(chan struct{}, 64),
	}
}

func (m *mockConnection) WriteMessage(messageType int, data []byte) error {
	select {
	case <-m.closed:
		return errors.New("connection closed")
	default:
	}
	m.mu.Lock()
	m.types = append(m.types, messageType)
	m.written = append(m.written, append([]byte(nil), data...))
	m.mu.Unlock()
	select {
	case m.writes <- struct{}{}:
	default:
	}
	return nil
}

func (m *mockConnection) ReadMessage() (int, []byte, error) {
	<-m.closed
	return 0, nil, errors.New("connection closed")
}

func (m *mockConnection) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

func (m *mockConnection) SetReadDeadline(time.Time) error  { return nil }
func (m *mockConnection) SetWriteDeadline(time.Time) error { return nil }
func (m *mockConnection) SetReadLimit(int64)               {}
func (m *mockConnection) SetPongHandler(func(string) error) {}
func (m *mockConnection) RemoteAddr() string               { return "127.0.0.1:9999" }

func (m *mockConnection) messages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.written...)
}
