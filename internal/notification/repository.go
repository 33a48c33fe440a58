package notification

import (
	"context"
	"database/sql"
	"time"

	"notifier/internal/logger"
	pkgerrors "notifier/pkg/errors"
)

// Repository persists notifications. Create is the dedup point: it must
// insert at most one row per event ID even under concurrent callers.
type Repository interface {
	Create(ctx context.Context, n *Notification) (created bool, err error)
	FindByEventID(ctx context.Context, eventID string) (*Notification, error)
	List(ctx context.Context, limit, offset int) ([]Notification, error)
	ListUnread(ctx context.Context, limit, offset int) ([]Notification, error)
	GetByID(ctx context.Context, id int64) (*Notification, error)
	MarkRead(ctx context.Context, id int64) (*Notification, error)
}

type PostgresRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresRepository(db *sql.DB, log logger.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: log}
}

const notificationColumns = `id, event_id, event_type, title, message, data, read, event_time, created_at, updated_at`

// Create inserts the notification unless a row with the same event ID
// already exists. The ON CONFLICT DO NOTHING form keeps the check and the
// insert in a single statement, so two concurrent consumers of the same
// record cannot both insert.
func (r *PostgresRepository) Create(ctx context.Context, n *Notification) (bool, error) {
	query := `
		INSERT INTO notifications (event_id, event_type, title, message, data, read, event_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		n.EventID, n.EventType, n.Title, n.Message, nullString(n.Data), n.Read, n.EventTime,
	).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		return false, pkgerrors.ErrInternal.WithCause(err).WithDetail("message", "failed to insert notification")
	}

	// Conflict path: the row already exists, load it so callers see the
	// stored notification.
	existing, err := r.FindByEventID(ctx, n.EventID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		*n = *existing
	}
	return false, nil
}

func (r *PostgresRepository) FindByEventID(ctx context.Context, eventID string) (*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE event_id = $1`

	n, err := r.scanOne(r.db.QueryRowContext(ctx, query, eventID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.ErrInternal.WithCause(err).WithDetail("message", "failed to query notification by event id")
	}
	return n, nil
}

func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		ORDER BY event_time DESC, id DESC
		LIMIT $1 OFFSET $2`

	return r.queryMany(ctx, query, limit, offset)
}

func (r *PostgresRepository) ListUnread(ctx context.Context, limit, offset int) ([]Notification, error) {
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE read = FALSE
		ORDER BY event_time DESC, id DESC
		LIMIT $1 OFFSET $2`

	return r.queryMany(ctx, query, limit, offset)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	n, err := r.scanOne(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", "notification not found")
	}
	if err != nil {
		return nil, pkgerrors.ErrInternal.WithCause(err).WithDetail("message", "failed to query notification")
	}
	return n, nil
}

// MarkRead is idempotent: marking an already-read notification succeeds
// and returns the current row.
func (r *PostgresRepository) MarkRead(ctx context.Context, id int64) (*Notification, error) {
	query := `
		UPDATE notifications
		SET read = TRUE, updated_at = $2
		WHERE id = $1
		RETURNING ` + notificationColumns

	n, err := r.scanOne(r.db.QueryRowContext(ctx, query, id, time.Now().UTC()))
	if err == sql.ErrNoRows {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", "notification not found")
	}
	if err != nil {
		return nil, pkgerrors.ErrInternal.WithCause(err).WithDetail("message", "failed to mark notification as read")
	}
	return n, nil
}

func (r *PostgresRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]Notification, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pkgerrors.ErrInternal.WithCause(err).WithDetail("message", "failed to list notifications")
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, pkgerrors.ErrTimeout.WithCause(ctx.Err())
		default:
		}

		n, err := r.scanRow(rows)
		if err != nil {
			return nil, pkgerrors.ErrInternal.WithCause(err).WithDetail("message", "failed to scan notification row")
		}
		notifications = append(notifications, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.ErrInternal.WithCause(err).WithDetail("message", "failed to iterate notification rows")
	}
	return notifications, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*Notification, error) {
	return r.scanRow(row)
}

func (r *PostgresRepository) scanRow(row rowScanner) (*Notification, error) {
	var n Notification
	var data sql.NullString
	if err := row.Scan(
		&n.ID, &n.EventID, &n.EventType, &n.Title, &n.Message,
		&data, &n.Read, &n.EventTime, &n.CreatedAt, &n.UpdatedAt,
	); err != nil {
		return nil, err
	}
	n.Data = data.String
	return &n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
