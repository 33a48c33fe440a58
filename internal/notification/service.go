package notification

import (
	"context"
	"encoding/json"
	"time"

	"notifier/internal/broker"
	"notifier/internal/config"
	"notifier/internal/constants"
	"notifier/internal/event"
	"notifier/internal/logger"
	pkgerrors "notifier/pkg/errors"
	"notifier/pkg/logging"
	"notifier/pkg/metrics"
)

// Broadcaster fans a stored notification out to live streaming sessions.
// Implemented by the stream registry; declared here so the ingest path
// does not depend on the transport package.
type Broadcaster interface {
	Broadcast(n *Notification)
}

// Service owns the ingest pipeline and the read-side notification
// operations. HandleRecord is the bus entry point; the remaining methods
// back the REST handlers.
type Service struct {
	repo        Repository
	cache       SeenCache
	translator  *Translator
	broadcaster Broadcaster
	cfg         config.NotificationsConfig
	logger      logger.Logger
}

func NewService(
	repo Repository,
	cache SeenCache,
	translator *Translator,
	broadcaster Broadcaster,
	cfg config.NotificationsConfig,
	log logger.Logger,
) *Service {
	return &Service{
		repo:        repo,
		cache:       cache,
		translator:  translator,
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      log,
	}
}

// HandleRecord processes one bus record end to end: decode, filter,
// persist, broadcast. A nil return commits the record; errors bubble up
// to the consumer's retry policy. Broadcast failures never fail the
// record, delivery to live sessions is best effort.
func (s *Service) HandleRecord(ctx context.Context, rec broker.Record) error {
	start := time.Now()

	ev := event.Decode(rec.Value)
	ctx = logging.WithEventID(ctx, ev.EventID)

	if !event.ShouldNotify(ev.EventType) {
		s.logger.DebugwCtx(ctx, "Skipping non-notifiable event",
			"event_type", ev.EventType,
			"topic", rec.Topic,
		)
		return nil
	}

	n, created, err := s.Ingest(ctx, ev)
	if err != nil {
		metrics.ObserveIngestDuration(time.Since(start), "error")
		return err
	}

	if created {
		metrics.NotificationsCreatedTotal.WithLabelValues(event.NormalizeType(ev.EventType)).Inc()
		s.broadcaster.Broadcast(n)
		s.logger.InfowCtx(ctx, "Notification created",
			"notification_id", n.ID,
			"event_type", n.EventType,
			"topic", rec.Topic,
		)
	}

	metrics.ObserveIngestDuration(time.Since(start), "ok")
	return nil
}

// Ingest stores the event as a notification exactly once. The seen-cache
// is consulted first; on cache failure the configured fallback decides
// whether to press on to the database or surface the error for retry.
// The database unique constraint is the correctness mechanism, the cache
// only saves round trips.
func (s *Service) Ingest(ctx context.Context, ev event.CanonicalEvent) (*Notification, bool, error) {
	seen, err := s.cache.Seen(ctx, ev.EventID)
	if err != nil {
		if s.cfg.OnCacheError == constants.FallbackDeny {
			return nil, false, pkgerrors.ErrServiceUnavailable.WithCause(err).
				WithDetail("message", "seen-cache unavailable and fallback is deny")
		}
		s.logger.WarnwCtx(ctx, "Seen-cache check failed, continuing to database", "error", err)
	} else if seen {
		metrics.DuplicateEventsTotal.WithLabelValues("cache").Inc()
		s.logger.DebugwCtx(ctx, "Duplicate event skipped via cache")
		return nil, false, nil
	}

	title, message := s.translator.Translate(ev)

	var data string
	if len(ev.Data) > 0 {
		raw, err := json.Marshal(ev.Data)
		if err != nil {
			s.logger.WarnwCtx(ctx, "Failed to encode event data, storing notification without it", "error", err)
		} else {
			data = string(raw)
		}
	}

	n := &Notification{
		EventID:   ev.EventID,
		EventType: ev.EventType,
		Title:     title,
		Message:   message,
		Data:      data,
		EventTime: ev.Timestamp,
	}

	created, err := s.repo.Create(ctx, n)
	if err != nil {
		return nil, false, err
	}
	if !created {
		metrics.DuplicateEventsTotal.WithLabelValues("database").Inc()
		s.logger.DebugwCtx(ctx, "Duplicate event skipped via database constraint")
	}

	// Mark only after the row is durable: a retried record that crashed
	// before the insert must not find itself in the cache.
	if err := s.cache.MarkSeen(ctx, ev.EventID); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to mark event as seen", "error", err)
	}

	if !created {
		return n, false, nil
	}
	return n, true, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Notification, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListUnread(ctx context.Context, limit, offset int) ([]Notification, error) {
	return s.repo.ListUnread(ctx, limit, offset)
}

func (s *Service) GetByID(ctx context.Context, id int64) (*Notification, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) MarkRead(ctx context.Context, id int64) (*Notification, error) {
	return s.repo.MarkRead(ctx, id)
}
