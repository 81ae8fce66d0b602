package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/proconitumbiara/procon-app-sub000/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// findActionRequest checks the idempotency ledger. found=true means the
// request was already processed; empty=true means it completed without a
// target (e.g. a claim against an empty queue).
func findActionRequest(ctx context.Context, tx pgx.Tx, action, requestID string) (string, bool, bool, error) {
	var targetID sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT target_id FROM action_requests
		WHERE request_id = $1 AND action = $2
	`, requestID, action)
	if err := row.Scan(&targetID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, false, nil
		}
		return "", false, false, err
	}
	if !targetID.Valid {
		return "", true, true, nil
	}
	return targetID.String, true, false, nil
}

// insertActionRequest records the outcome of a processed request. A conflict
// means some other request already owns this request_id: a different action is
// a client error, the same action is a concurrent duplicate whose work this
// transaction must discard.
func insertActionRequest(ctx context.Context, tx pgx.Tx, action, requestID, targetID string) error {
	var target interface{}
	if targetID != "" {
		target = targetID
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO action_requests (request_id, action, target_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (request_id) DO NOTHING
	`, requestID, action, target, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var existing string
	row := tx.QueryRow(ctx, `SELECT action FROM action_requests WHERE request_id = $1`, requestID)
	if err := row.Scan(&existing); err != nil {
		return err
	}
	if existing != action {
		return store.ErrRequestIDReused
	}
	return store.ErrConcurrencyConflict
}

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, eventType string, payload map[string]interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), eventType, payloadJSON, time.Now().UTC())
	return err
}

const zeroUUID = "00000000-0000-0000-0000-000000000000"

// ListOutboxEvents pages by the (created_at, event_id) cursor so events that
// share a timestamp across a batch boundary are never skipped.
func (s *Store) ListOutboxEvents(ctx context.Context, after time.Time, afterID string, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	if afterID == "" {
		afterID = zeroUUID
	}
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, type, payload_json, created_at
		FROM outbox_events
		WHERE (created_at, event_id) > ($1, $2::uuid)
		ORDER BY created_at ASC, event_id ASC
		LIMIT $3
	`, after, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		if err := rows.Scan(&event.EventID, &event.Type, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
