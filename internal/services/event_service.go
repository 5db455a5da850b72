package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/isdelr/ender-watch/internal/database"
	"github.com/isdelr/ender-watch/internal/metrics"
	"github.com/isdelr/ender-watch/internal/models"
	"github.com/rs/zerolog/log"
)

// EventRecorder is the write side of the event store used by the sensors.
type EventRecorder interface {
	Append(ctx context.Context, ts time.Time, eventType models.EventType, details string) (int64, error)
}

// EventServiceProvider defines the interface for event store services.
type EventServiceProvider interface {
	EventRecorder
	Initialize(ctx context.Context) error
	Query(ctx context.Context, since *time.Time) ([]models.LogEvent, error)
	Recent(ctx context.Context, limit int) ([]models.LogEvent, error)
}

// EventService persists LogEvents in SQLite. Every operation opens its own
// connection and closes it before returning, so it is safe for concurrent use
// from any number of goroutines; write serialization is left to SQLite's WAL
// locking.
type EventService struct {
	dbPath string
}

// NewEventService creates a new EventService backed by the file at dbPath.
func NewEventService(dbPath string) *EventService {
	return &EventService{dbPath: dbPath}
}

// Path returns the database file path.
func (s *EventService) Path() string {
	return s.dbPath
}

// withConn opens a connection, runs fn, and releases the connection.
func (s *EventService) withConn(ctx context.Context, op string, fn func(db *sql.DB) error) error {
	db, err := database.New(ctx, s.dbPath)
	if err != nil {
		metrics.StoreErrors.WithLabelValues(op).Inc()
		log.Error().Err(err).Str("op", op).Str("path", s.dbPath).Msg("EventStore: Failed to open database")
		return fmt.Errorf("open %s: %w", s.dbPath, err)
	}
	defer db.Close()

	if err := fn(db); err != nil {
		metrics.StoreErrors.WithLabelValues(op).Inc()
		log.Error().Err(err).Str("op", op).Msg("EventStore: Operation failed")
		return err
	}
	return nil
}

// Initialize creates the logs table if it does not exist yet.
func (s *EventService) Initialize(ctx context.Context) error {
	if err := database.EnsureDir(s.dbPath); err != nil {
		return err
	}
	err := s.withConn(ctx, "initialize", func(db *sql.DB) error {
		return database.Migrate(ctx, db)
	})
	if err != nil {
		return fmt.Errorf("initialize event store: %w", err)
	}
	log.Info().Str("path", s.dbPath).Msg("Database initialized.")
	return nil
}

// Append inserts one event and returns its id.
func (s *EventService) Append(ctx context.Context, ts time.Time, eventType models.EventType, details string) (int64, error) {
	var id int64
	err := s.withConn(ctx, "append", func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			"INSERT INTO logs (timestamp, event_type, details) VALUES (?, ?, ?)",
			formatTimestamp(ts), string(eventType), details,
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	metrics.EventsRecorded.WithLabelValues(string(eventType)).Inc()
	return id, nil
}

// Query returns every event, or only those at or after since, in id order.
func (s *EventService) Query(ctx context.Context, since *time.Time) ([]models.LogEvent, error) {
	query := "SELECT id, timestamp, event_type, details FROM logs"
	var args []interface{}
	if since != nil {
		query += " WHERE timestamp >= ?"
		args = append(args, formatTimestamp(*since))
	}
	query += " ORDER BY id ASC"

	var events []models.LogEvent
	err := s.withConn(ctx, "query", func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}
		defer rows.Close()
		events, err = scanEvents(rows)
		return err
	})
	return events, err
}

// Recent returns the last limit events in ascending id order.
func (s *EventService) Recent(ctx context.Context, limit int) ([]models.LogEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	var events []models.LogEvent
	err := s.withConn(ctx, "recent", func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT id, timestamp, event_type, details FROM (
				SELECT id, timestamp, event_type, details FROM logs ORDER BY id DESC LIMIT ?
			) ORDER BY id ASC`, limit)
		if err != nil {
			return fmt.Errorf("query recent events: %w", err)
		}
		defer rows.Close()
		events, err = scanEvents(rows)
		return err
	})
	return events, err
}

// scanEvents is a helper function to scan rows into LogEvents.
func scanEvents(rows *sql.Rows) ([]models.LogEvent, error) {
	var events []models.LogEvent
	for rows.Next() {
		var (
			event                  models.LogEvent
			ts, eventType, details sql.NullString
		)
		if err := rows.Scan(&event.ID, &ts, &eventType, &details); err != nil {
			return nil, err
		}
		parsed, err := ParseTimestamp(ts.String)
		if err != nil {
			log.Warn().Err(err).Int64("id", event.ID).Msg("EventStore: Unparseable timestamp")
		}
		event.Timestamp = parsed
		event.EventType = models.EventType(eventType.String)
		event.Details = details.String
		events = append(events, event)
	}
	return events, rows.Err()
}

// ParseTimestamp reads a stored timestamp in the local time zone.
func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(models.TimestampLayout, s, time.Local)
}

func formatTimestamp(ts time.Time) string {
	return ts.In(time.Local).Format(models.TimestampLayout)
}
