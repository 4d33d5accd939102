package ws

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"palaver/internal/models"
)

type mockWS struct {
	inbound   chan models.ClientMessage
	written   chan models.ServerMessage
	closed    chan struct{}
	closeOnce sync.Once
}

func newMockWS() *mockWS {
	return &mockWS{
		inbound: make(chan models.ClientMessage, 16),
		written: make(chan models.ServerMessage, 16),
		closed:  make(chan struct{}),
	}
}

func (m *mockWS) ReadJSON(v interface{}) error {
	select {
	case msg, ok := <-m.inbound:
		if !ok {
			return io.EOF
		}
		*(v.(*models.ClientMessage)) = msg
		return nil
	case <-m.closed:
		return io.EOF
	}
}

func (m *mockWS) WriteJSON(v interface{}) error {
	m.written <- v.(models.ServerMessage)
	return nil
}

func (m *mockWS) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

type mockCoordinator struct {
	mu       sync.Mutex
	calls    []string
	detached bool

	serverCh chan models.ServerMessage

	loginErr   error
	joinErr    error
	privateErr error
	historyErr error
}

func newMockCoordinator() *mockCoordinator {
	return &mockCoordinator{serverCh: make(chan models.ServerMessage, 16)}
}

func (m *mockCoordinator) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockCoordinator) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockCoordinator) Attach(connID string) chan models.ServerMessage {
	return m.serverCh
}

func (m *mockCoordinator) Detach(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detached = true
}

func (m *mockCoordinator) Login(connID, name string) (string, error) {
	m.record("login:" + name)
	return BootstrapRoom, m.loginErr
}

func (m *mockCoordinator) JoinRoom(connID, room string) (string, error) {
	m.record("join:" + room)
	return room, m.joinErr
}

func (m *mockCoordinator) SendRoom(connID, room, text string) {
	m.record("send:" + room + ":" + text)
}

func (m *mockCoordinator) SendPrivate(connID, to, text string) error {
	m.record("private:" + to + ":" + text)
	return m.privateErr
}

func (m *mockCoordinator) History(connID, key string) error {
	m.record("history:" + key)
	return m.historyErr
}

func (m *mockCoordinator) PrivateHistory(connID, counterpart string) error {
	m.record("privateHistory:" + counterpart)
	return nil
}

func (m *mockCoordinator) SetTyping(connID, room, to string) {
	m.record("typing:" + room + ":" + to)
}

func (m *mockCoordinator) ClearTyping(connID, room, to string) {
	m.record("stopTyping:" + room + ":" + to)
}

func waitForCalls(t *testing.T, hub *mockCoordinator, n int) []string {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if calls := hub.recorded(); len(calls) >= n {
			return calls
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d calls, got %v", n, hub.recorded())
	return nil
}

func TestConnection_Dispatch(t *testing.T) {
	hub := newMockCoordinator()
	ws := newMockWS()
	conn := NewConnection(hub, ws, "c1")

	done := make(chan error, 1)
	go func() { done <- conn.Handle(context.Background()) }()

	ws.inbound <- models.ClientMessage{Type: models.ClientMessageTypeLogin, Name: "alice"}
	ws.inbound <- models.ClientMessage{Type: models.ClientMessageTypeJoin, Room: "random"}
	ws.inbound <- models.ClientMessage{Type: models.ClientMessageTypeSend, Room: "random", Text: "hi"}
	ws.inbound <- models.ClientMessage{Type: models.ClientMessageTypeSendPrivate, To: "bob", Text: "psst"}
	ws.inbound <- models.ClientMessage{Type: models.ClientMessageTypeHistory, Room: "random"}
	ws.inbound <- models.ClientMessage{Type: models.ClientMessageTypePrivateHistory, To: "bob"}
	ws.inbound <- models.ClientMessage{Type: models.ClientMessageTypeTyping, Room: "random"}
	ws.inbound <- models.ClientMessage{Type: models.ClientMessageTypeStopTyping, Room: "random"}

	expected := []string{
		"login:alice",
		"join:random",
		"send:random:hi",
		"private:bob:psst",
		"history:random",
		"privateHistory:bob",
		"typing:random:",
		"stopTyping:random:",
	}
	calls := waitForCalls(t, hub, len(expected))
	for i, exp := range expected {
		if calls[i] != exp {
			t.Errorf("call %d: expected %q, got %q", i, exp, calls[i])
		}
	}

	close(ws.inbound)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Handle did not return after transport closed")
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	if !hub.detached {
		t.Error("connection must detach from the hub on exit")
	}
}

func TestConnection_ForwardsServerPushes(t *testing.T) {
	hub := newMockCoordinator()
	ws := newMockWS()
	conn := NewConnection(hub, ws, "c1")

	done := make(chan error, 1)
	go func() { done <- conn.Handle(context.Background()) }()

	hub.serverCh <- models.ServerMessage{Type: models.ServerMessageTypeNotice, Text: "hello"}

	select {
	case msg := <-ws.written:
		if msg.Type != models.ServerMessageTypeNotice || msg.Text != "hello" {
			t.Fatalf("unexpected write: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the push to reach the transport")
	}

	// The hub closing the outbound channel ends the connection cleanly.
	close(hub.serverCh)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean exit, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Handle did not return after hub release")
	}
}

func TestConnection_ReportsNamedErrors(t *testing.T) {
	hub := newMockCoordinator()
	hub.loginErr = models.ErrNameTaken
	ws := newMockWS()
	conn := NewConnection(hub, ws, "c1")

	done := make(chan error, 1)
	go func() { done <- conn.Handle(context.Background()) }()

	ws.inbound <- models.ClientMessage{Type: models.ClientMessageTypeLogin, Name: "alice"}

	select {
	case msg := <-ws.written:
		if msg.Type != models.ServerMessageTypeError || msg.Code != models.ErrCodeNameTaken {
			t.Fatalf("expected name_taken error, got %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an error write")
	}

	close(ws.inbound)
	<-done
}

func TestConnection_ReportsBadRoom(t *testing.T) {
	hub := newMockCoordinator()
	hub.joinErr = models.ErrBadRoomName
	ws := newMockWS()
	conn := NewConnection(hub, ws, "c1")

	done := make(chan error, 1)
	go func() { done <- conn.Handle(context.Background()) }()

	ws.inbound <- models.ClientMessage{Type: models.ClientMessageTypeJoin, Room: ""}

	select {
	case msg := <-ws.written:
		if msg.Type != models.ServerMessageTypeError || msg.Code != models.ErrCodeBadRoom {
			t.Fatalf("expected bad_room error, got %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an error write")
	}

	close(ws.inbound)
	<-done
}

func TestConnection_SwallowsStaleErrors(t *testing.T) {
	hub := newMockCoordinator()
	hub.historyErr = models.ErrNotFound
	ws := newMockWS()
	conn := NewConnection(hub, ws, "c1")

	done := make(chan error, 1)
	go func() { done <- conn.Handle(context.Background()) }()

	ws.inbound <- models.ClientMessage{Type: models.ClientMessageTypeHistory, Room: "pm:alice:bob"}
	waitForCalls(t, hub, 1)

	select {
	case msg := <-ws.written:
		t.Fatalf("stale action must not surface, got %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}

	close(ws.inbound)
	<-done
}

func TestConnection_ContextCancel(t *testing.T) {
	hub := newMockCoordinator()
	ws := newMockWS()
	conn := NewConnection(hub, ws, "c1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- conn.Handle(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean exit on cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Handle did not return after cancel")
	}
}
