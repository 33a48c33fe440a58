package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifier/internal/auth"
	"notifier/internal/logger"
	"notifier/internal/notification"
)

// fakeConn collects written frames. failAfter < 0 means never fail.
type fakeConn struct {
	mu        sync.Mutex
	written   [][]byte
	failAfter int
	closed    bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{failAfter: -1}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAfter >= 0 && len(c.written) >= c.failAfter {
		return errors.New("broken pipe")
	}
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	return 0, nil, errors.New("not implemented")
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.written))
	copy(out, c.written)
	return out
}

func (c *fakeConn) waitForMessages(t *testing.T, n int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := c.messages(); len(msgs) >= n {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d messages, got %d", n, len(c.messages()))
	return nil
}

func newTestRegistry() *Registry {
	return NewRegistry(8, time.Second, logger.NopLogger())
}

func testSubject(id string) auth.Subject {
	return auth.Subject{UserID: id, Email: id + "@x.com"}
}

func sampleNotification(id int64) *notification.Notification {
	return &notification.Notification{
		ID:        id,
		EventID:   fmt.Sprintf("e%d", id),
		EventType: "user.created",
		Title:     "Novo Usuário Criado",
		Message:   "Usuário Ana criado com sucesso",
		EventTime: time.Now(),
	}
}

func TestRegisterSendsWelcome(t *testing.T) {
	r := newTestRegistry()
	conn := newFakeConn()

	s := r.Register(conn, testSubject("u1"))
	defer r.Unregister(s.ID)

	msgs := conn.waitForMessages(t, 1)

	var welcome map[string]interface{}
	require.NoError(t, json.Unmarshal(msgs[0], &welcome))
	assert.Equal(t, "welcome", welcome["type"])
	assert.Equal(t, "Connected to notifications service", welcome["message"])
	assert.Equal(t, true, welcome["authenticated"])
	assert.Equal(t, "u1", welcome["userId"])
	assert.Equal(t, "u1@x.com", welcome["email"])
	assert.NotEmpty(t, welcome["timestamp"])
}

func TestBroadcastReachesAllSessions(t *testing.T) {
	r := newTestRegistry()
	conns := []*fakeConn{newFakeConn(), newFakeConn(), newFakeConn()}
	for i, conn := range conns {
		r.Register(conn, testSubject(fmt.Sprintf("u%d", i)))
	}
	defer r.CloseAll()

	r.Broadcast(sampleNotification(1))

	for _, conn := range conns {
		msgs := conn.waitForMessages(t, 2)

		var envelope struct {
			Type string           `json:"type"`
			Data notification.DTO `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msgs[1], &envelope))
		assert.Equal(t, "notification", envelope.Type)
		assert.Equal(t, "1", envelope.Data.ID)
		assert.Equal(t, "Novo Usuário Criado", envelope.Data.Title)
	}
}

func TestBroadcastPreservesPerSessionOrder(t *testing.T) {
	r := newTestRegistry()
	conn := newFakeConn()
	s := r.Register(conn, testSubject("u1"))
	defer r.Unregister(s.ID)

	r.Broadcast(sampleNotification(1))
	r.Broadcast(sampleNotification(2))

	msgs := conn.waitForMessages(t, 3)

	var first, second struct {
		Data notification.DTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msgs[1], &first))
	require.NoError(t, json.Unmarshal(msgs[2], &second))
	assert.Equal(t, "1", first.Data.ID)
	assert.Equal(t, "2", second.Data.ID)
}

func TestFailedSessionRemovedOthersUnaffected(t *testing.T) {
	r := newTestRegistry()

	broken := newFakeConn()
	broken.failAfter = 0
	healthy := newFakeConn()

	brokenSession := r.Register(broken, testSubject("broken"))
	r.Register(healthy, testSubject("healthy"))
	defer r.CloseAll()

	// The broken session's writer fails on the welcome message and the
	// failure callback removes it.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && r.Count() > 1 {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 1, r.Count())

	r.Broadcast(sampleNotification(1))

	healthy.waitForMessages(t, 2)
	_, stillThere := func() (*Session, bool) {
		r.mu.RLock()
		defer r.mu.RUnlock()
		s, ok := r.sessions[brokenSession.ID]
		return s, ok
	}()
	assert.False(t, stillThere)
}

func TestSlowSessionDroppedDuringBroadcast(t *testing.T) {
	// Buffer of one with no writer draining it: the second enqueue
	// fails and the fanout removes the session synchronously.
	r := NewRegistry(1, time.Second, logger.NopLogger())
	conn := newFakeConn()

	s := newSession(conn, testSubject("slow"), 1, time.Second)
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.Broadcast(sampleNotification(1))
	r.Broadcast(sampleNotification(2))

	assert.Equal(t, 0, r.Count())
}

func TestUnregisterIdempotent(t *testing.T) {
	r := newTestRegistry()
	conn := newFakeConn()
	s := r.Register(conn, testSubject("u1"))

	r.Unregister(s.ID)
	r.Unregister(s.ID)

	assert.Equal(t, 0, r.Count())
	conn.mu.Lock()
	assert.True(t, conn.closed)
	conn.mu.Unlock()
}

func TestConcurrentRegisterUnregisterBroadcast(t *testing.T) {
	r := newTestRegistry()
	defer r.CloseAll()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := r.Register(newFakeConn(), testSubject(fmt.Sprintf("u%d", i)))
			r.Broadcast(sampleNotification(int64(i)))
			r.Unregister(s.ID)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Count())
}

func TestCloseAll(t *testing.T) {
	r := newTestRegistry()
	conns := []*fakeConn{newFakeConn(), newFakeConn()}
	for i, conn := range conns {
		r.Register(conn, testSubject(fmt.Sprintf("u%d", i)))
	}

	r.CloseAll()

	assert.Equal(t, 0, r.Count())
	for _, conn := range conns {
		conn.mu.Lock()
		assert.True(t, conn.closed)
		conn.mu.Unlock()
	}
}
