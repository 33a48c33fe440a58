package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"notifier/internal/auth"
)

var errSendBufferFull = errors.New("session send buffer full")

// Conn is the subset of the websocket connection the session needs.
// Satisfied by *websocket.Conn; tests substitute fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session is one authenticated streaming connection. All writes go
// through the send channel and a single writer goroutine, so the
// underlying connection never sees concurrent writers.
type Session struct {
	ID       string
	Subject  auth.Subject
	OpenedAt time.Time

	conn         Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
}

func newSession(conn Conn, subject auth.Subject, bufferSize int, writeTimeout time.Duration) *Session {
	return &Session{
		ID:           uuid.New().String(),
		Subject:      subject,
		OpenedAt:     time.Now(),
		conn:         conn,
		send:         make(chan []byte, bufferSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

// enqueue hands a message to the writer goroutine without blocking. A
// full buffer means the client is not draining; the caller treats that
// as a delivery failure.
func (s *Session) enqueue(msg []byte) error {
	select {
	case <-s.done:
		return errors.New("session closed")
	default:
	}

	select {
	case s.send <- msg:
		return nil
	case <-s.done:
		return errors.New("session closed")
	default:
		return errSendBufferFull
	}
}

// writeLoop drains the send channel onto the connection. It exits on the
// first write failure or when the session closes; onFailure runs at most
// once, on transport failure.
func (s *Session) writeLoop(onFailure func(err error)) {
	for {
		select {
		case msg := <-s.send:
			if err := s.write(msg); err != nil {
				if onFailure != nil {
					onFailure(err)
				}
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) write(msg []byte) error {
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}

// close is idempotent; it stops the writer goroutine and closes the
// underlying connection.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}
