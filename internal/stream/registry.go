package stream

import (
	"sync"
	"time"

	"notifier/internal/auth"
	"notifier/internal/logger"
	"notifier/internal/notification"
	"notifier/pkg/metrics"
)

// Registry tracks live streaming sessions and fans notifications out to
// them. It implements notification.Broadcaster.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	bufferSize   int
	writeTimeout time.Duration
	logger       logger.Logger
}

func NewRegistry(bufferSize int, writeTimeout time.Duration, log logger.Logger) *Registry {
	return &Registry{
		sessions:     make(map[string]*Session),
		bufferSize:   bufferSize,
		writeTimeout: writeTimeout,
		logger:       log,
	}
}

// Register creates a session for the connection, starts its writer
// goroutine, and queues the welcome message. The returned session is
// live immediately: a broadcast racing with Register may or may not
// reach it.
func (r *Registry) Register(conn Conn, subject auth.Subject) *Session {
	s := newSession(conn, subject, r.bufferSize, r.writeTimeout)

	r.mu.Lock()
	r.sessions[s.ID] = s
	count := len(r.sessions)
	r.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))

	go s.writeLoop(func(err error) {
		r.logger.Warnw("Session write failed, removing session",
			"session_id", s.ID,
			"user_id", s.Subject.UserID,
			"error", err,
		)
		r.Unregister(s.ID)
	})

	if err := s.enqueue(welcomeMessage(subject)); err != nil {
		r.logger.Warnw("Failed to queue welcome message", "session_id", s.ID, "error", err)
	}

	r.logger.Infow("Session opened",
		"session_id", s.ID,
		"user_id", subject.UserID,
		"email", subject.Email,
		"active_sessions", count,
	)
	return s
}

// Unregister removes and closes the session. Safe to call more than
// once and from any goroutine.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return
	}

	s.close()
	metrics.ActiveSessions.Set(float64(count))
	r.logger.Infow("Session closed", "session_id", sessionID, "active_sessions", count)
}

// Broadcast encodes the notification once and queues it on every live
// session. Sessions whose buffer is full or that are already closed are
// removed during the pass; one bad client never delays the others.
func (r *Registry) Broadcast(n *notification.Notification) {
	msg := notificationMessage(n)

	r.mu.RLock()
	snapshot := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()

	for _, s := range snapshot {
		if err := s.enqueue(msg); err != nil {
			metrics.BroadcastDeliveriesTotal.WithLabelValues("failed").Inc()
			r.logger.Warnw("Dropping slow session",
				"session_id", s.ID,
				"user_id", s.Subject.UserID,
				"error", err,
			)
			r.Unregister(s.ID)
			continue
		}
		metrics.BroadcastDeliveriesTotal.WithLabelValues("ok").Inc()
	}
}

// CloseAll tears down every session, used during shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	metrics.ActiveSessions.Set(0)
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
